package sqlite

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const historySheet = "Questions"

// ExportXLSX writes every recorded question to w as a single-sheet workbook, newest first.
func (s *Store) ExportXLSX(ctx context.Context, w io.Writer) (int, error) {
	entries, err := s.Recent(ctx, 0)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return 0, err
	}

	headers := []any{
		"Asked At (UTC)",
		"Backend",
		"Question",
		"Answer",
		"Score",
		"Error",
		"Latency (ms)",
		"ID",
	}
	if err := setRow(f, 1, headers); err != nil {
		return 0, err
	}

	for i, e := range entries {
		var score any
		if e.Score >= 0 && e.Error == "" {
			score = e.Score
		}
		row := []any{
			e.AskedAt.Format("2006-01-02 15:04:05"),
			e.Backend,
			e.Question,
			e.Answer,
			score,
			e.Error,
			e.LatencyMS,
			e.ID,
		}
		if err := setRow(f, i+2, row); err != nil {
			return 0, err
		}
	}

	widths := []struct {
		from, to string
		width    float64
	}{
		{"A", "A", 20},
		{"B", "B", 10},
		{"C", "D", 60},
		{"F", "F", 48},
		{"H", "H", 38},
	}
	for _, cw := range widths {
		if err := f.SetColWidth(historySheet, cw.from, cw.to, cw.width); err != nil {
			return 0, fmt.Errorf("xlsx column width %s: %w", cw.from, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("xlsx write: %w", err)
	}
	return len(entries), nil
}

func setRow(f *excelize.File, row int, values []any) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("xlsx cell %d,%d: %w", col+1, row, err)
		}
		if err := f.SetCellValue(historySheet, cell, v); err != nil {
			return fmt.Errorf("xlsx cell %s: %w", cell, err)
		}
	}
	return nil
}
