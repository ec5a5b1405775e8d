package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PageConfig holds the cosmetic settings of the report page.
type PageConfig struct {
	Title        string     `yaml:"title"`
	DashboardURL string     `yaml:"dashboard_url"`
	Downloads    []Download `yaml:"downloads"`
	Links        []Link     `yaml:"links"`

	// ShowHistory lists recent questions from every visitor on the page.
	ShowHistory bool `yaml:"show_history"`
}

// Download is a local file offered in the sidebar. Name is the URL segment under /download/.
type Download struct {
	Label string `yaml:"label"`
	Name  string `yaml:"name"`
	Path  string `yaml:"path"`
	MIME  string `yaml:"mime"`
}

// Link is an external reference shown in the sidebar.
type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// DefaultPage is used when no CONFIG_FILE is given.
func DefaultPage() PageConfig {
	return PageConfig{
		Title:        "AI-Driven Stockout Risk Optimization Chatbot",
		DashboardURL: "https://public.tableau.com/views/AI-DrivenStockoutRiskPredictionforSmarterInventoryManagement/AI-drivenstockoutriskoptimizationforsmarterinventorymanagement?:language=en-US&:display_count=n&:origin=viz_share_link",
		Downloads: []Download{
			{Label: "Download Report", Name: "my_report.pdf", Path: "my_report.pdf", MIME: "application/pdf"},
			{Label: "Download Dataset", Name: "my_data.csv", Path: "my_data.csv", MIME: "text/csv"},
			{Label: "Download Code", Name: "my_code.ipynb", Path: "my_code.ipynb", MIME: "application/x-ipynb+json"},
		},
		Links: []Link{
			{Label: "View Dataset on Kaggle", URL: "https://www.kaggle.com/datasets/anirudhchauhan/retail-store-inventory-forecasting-dataset/data"},
		},
	}
}

// LoadPage reads a YAML page file. Fields left empty fall back to DefaultPage.
func LoadPage(path string) (PageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PageConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var page PageConfig
	if err := yaml.Unmarshal(data, &page); err != nil {
		return PageConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	def := DefaultPage()
	if page.Title == "" {
		page.Title = def.Title
	}
	if page.DashboardURL == "" {
		page.DashboardURL = def.DashboardURL
	}
	if page.Downloads == nil {
		page.Downloads = def.Downloads
	}
	if page.Links == nil {
		page.Links = def.Links
	}
	return page, nil
}

// Download returns the configured download with the given name.
func (p PageConfig) Download(name string) (Download, bool) {
	for _, d := range p.Downloads {
		if d.Name == name {
			return d, true
		}
	}
	return Download{}, false
}
