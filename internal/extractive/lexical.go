// Package extractive holds backends whose answers are spans of the context.
package extractive

import (
	"context"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hetulpatel/reportqa/internal/qa"
)

const maxSpanTokens = 15

// Lexical selects an answer span by lexical overlap with the question. It is
// deterministic and every answer is a verbatim substring of the context.
type Lexical struct{}

func NewLexical() *Lexical {
	return &Lexical{}
}

func (l *Lexical) Name() string {
	return "lexical"
}

type token struct {
	start, end int
	lower      string
	stem       string
	raw        string
}

type candidate struct {
	start, end int
	score      float64
}

// Answer returns the best span of text for question. Empty text yields an empty answer.
func (l *Lexical) Answer(ctx context.Context, text, question string) (qa.Answer, error) {
	if err := ctx.Err(); err != nil {
		return qa.Answer{}, err
	}
	if strings.TrimSpace(text) == "" {
		return qa.Answer{Text: "", Score: 0, Start: 0, End: 0}, nil
	}

	kind := classify(question)
	content := make(map[string]bool)
	for _, t := range tokenize(question, 0, len(question)) {
		if !stopwords[t.lower] {
			content[t.stem] = true
		}
	}

	var best *candidate
	for _, sent := range splitSentences(text) {
		c := scoreSentence(text, sent[0], sent[1], content, kind)
		if c == nil {
			continue
		}
		if best == nil || c.score > best.score+1e-9 {
			best = c
		}
	}
	if best == nil {
		return qa.Answer{Text: "", Score: 0, Start: 0, End: 0}, nil
	}

	return qa.Answer{
		Text:  text[best.start:best.end],
		Score: math.Max(0, math.Min(1, best.score/3.5)),
		Start: best.start,
		End:   best.end,
	}, nil
}

func scoreSentence(text string, start, end int, content map[string]bool, kind questionKind) *candidate {
	toks := tokenize(text, start, end)
	if len(toks) == 0 {
		return nil
	}

	marked := make([]bool, len(toks))
	hits := make(map[string]bool)
	for i, t := range toks {
		if content[t.stem] {
			marked[i] = true
			hits[t.stem] = true
		}
	}
	overlap := 0.0
	if len(content) > 0 {
		overlap = float64(len(hits)) / float64(len(content))
	}

	var best *candidate
	consider := func(from, to int, typed bool) {
		if from > to {
			return
		}
		dist := nearestMarked(marked, from, to)
		proximity := 0.0
		if dist >= 0 {
			proximity = 1 / float64(1+dist)
		}
		score := 2*overlap + 0.5*proximity - 0.01*float64(to-from+1)
		if typed {
			score++
		}
		c := &candidate{start: toks[from].start, end: toks[to].end, score: score}
		if best == nil || c.score > best.score+1e-9 {
			best = c
		}
	}

	for i := 0; i < len(toks); {
		if marked[i] {
			i++
			continue
		}
		j := i
		for j+1 < len(toks) && !marked[j+1] {
			j++
		}
		from, to, typed := narrow(toks, i, j, kind)
		consider(from, to, typed)
		i = j + 1
	}

	if best == nil {
		// every token is a question word; the sentence itself is the answer
		consider(0, len(toks)-1, false)
	}
	return best
}

// narrow picks the answer span inside the unmarked run toks[i..j].
func narrow(toks []token, i, j int, kind questionKind) (int, int, bool) {
	if kind != kindOther {
		var clusters [][2]int
		for k := i; k <= j; k++ {
			if !matchesKind(toks, k, kind) {
				continue
			}
			if n := len(clusters); n > 0 && clusters[n-1][1] == k-1 {
				clusters[n-1][1] = k
			} else {
				clusters = append(clusters, [2]int{k, k})
			}
		}
		if len(clusters) > 0 {
			// Take the cluster that touches the question terms: the run's left edge
			// follows a marked token unless the run opens the sentence.
			c := clusters[0]
			if i == 0 && j < len(toks)-1 {
				c = clusters[len(clusters)-1]
			}
			first, last := c[0], c[1]
			if last-first+1 > maxSpanTokens {
				last = first + maxSpanTokens - 1
			}
			if first > i && modifiers[toks[first-1].lower] {
				first--
			}
			return first, last, true
		}
	}

	for i <= j && stopwords[toks[i].lower] {
		i++
	}
	for j >= i && stopwords[toks[j].lower] {
		j--
	}
	if i > j {
		return 1, 0, false
	}
	if j-i+1 > maxSpanTokens {
		j = i + maxSpanTokens - 1
	}
	return i, j, false
}

func nearestMarked(marked []bool, from, to int) int {
	best := -1
	for k, m := range marked {
		if !m {
			continue
		}
		var d int
		switch {
		case k < from:
			d = from - k - 1
		case k > to:
			d = k - to - 1
		default:
			continue
		}
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// splitSentences returns [start, end) byte offsets of sentences in text.
func splitSentences(text string) [][2]int {
	var out [][2]int
	start := 0
	flush := func(end int) {
		s, e := start, end
		for s < e && isSpaceByte(text[s]) {
			s++
		}
		for e > s && isSpaceByte(text[e-1]) {
			e--
		}
		if s < e {
			out = append(out, [2]int{s, e})
		}
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n', '\f':
			flush(i)
			start = i + 1
		case '.', '!', '?':
			if i+1 == len(text) || isSpaceByte(text[i+1]) {
				flush(i + 1)
				start = i + 1
			}
		}
	}
	flush(len(text))
	return out
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// tokenize splits text[start:end] on whitespace and trims surrounding punctuation.
func tokenize(text string, start, end int) []token {
	var toks []token
	i := start
	for i < end {
		for i < end && isSpaceByte(text[i]) {
			i++
		}
		j := i
		for j < end && !isSpaceByte(text[j]) {
			j++
		}
		if i == j {
			break
		}
		s, e := i, j
		for s < e {
			r, size := utf8.DecodeRuneInString(text[s:e])
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$' {
				break
			}
			s += size
		}
		for e > s {
			r, size := utf8.DecodeLastRuneInString(text[s:e])
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '%' {
				break
			}
			e -= size
		}
		if s < e {
			raw := text[s:e]
			lower := strings.ToLower(raw)
			toks = append(toks, token{start: s, end: e, raw: raw, lower: lower, stem: stem(lower)})
		}
		i = j
	}
	return toks
}

func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}
