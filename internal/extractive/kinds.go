package extractive

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type questionKind int

const (
	kindOther questionKind = iota
	kindWhen
	kindQuantity
	kindWho
	kindWhere
)

func classify(question string) questionKind {
	q := strings.ToLower(question)
	fields := strings.FieldsFunc(q, func(r rune) bool { return !unicode.IsLetter(r) })
	for i, f := range fields {
		switch f {
		case "when":
			return kindWhen
		case "who", "whom", "whose":
			return kindWho
		case "where":
			return kindWhere
		case "how":
			if i+1 < len(fields) && (fields[i+1] == "many" || fields[i+1] == "much" || fields[i+1] == "often" || fields[i+1] == "long") {
				if fields[i+1] == "often" || fields[i+1] == "long" {
					return kindWhen
				}
				return kindQuantity
			}
		}
	}
	if strings.HasPrefix(q, "what time") || strings.HasPrefix(q, "what day") || strings.HasPrefix(q, "which day") || strings.HasPrefix(q, "what month") || strings.HasPrefix(q, "what year") {
		return kindWhen
	}
	return kindOther
}

func matchesKind(toks []token, k int, kind questionKind) bool {
	t := toks[k]
	switch kind {
	case kindWhen:
		return temporal[t.lower] || temporal[t.stem] || isYear(t.lower) || hasDigit(t.lower)
	case kindQuantity:
		return hasDigit(t.lower) || numberWords[t.lower]
	case kindWho:
		return isCapitalized(t.raw) && !stopwords[t.lower] && !temporal[t.lower]
	case kindWhere:
		if k > 0 && places[toks[k-1].lower] {
			return !stopwords[t.lower]
		}
		return k > 0 && isCapitalized(t.raw) && !temporal[t.lower] && !stopwords[t.lower]
	}
	return false
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s >= "1900" && s <= "2199"
}

func isCapitalized(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

var stopwords = setOf(
	"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
	"do", "does", "did", "of", "in", "on", "at", "to", "for", "by", "with",
	"from", "and", "or", "but", "what", "when", "where", "who", "whom", "whose",
	"which", "why", "how", "much", "many", "this", "that", "these", "those",
	"it", "its", "as", "into", "than", "then", "there", "their", "they", "we",
	"our", "you", "your", "i", "he", "she", "his", "her", "has", "have", "had",
	"will", "would", "can", "could", "should", "may", "might", "not", "so", "if",
	"about", "also", "any", "some",
)

var modifiers = setOf(
	"every", "each", "on", "in", "at", "by", "before", "after", "until", "since",
	"during", "per", "about", "around", "approximately", "over", "under", "nearly",
	"almost", "roughly", "within", "next", "last", "early", "late", "mid",
)

var places = setOf("in", "at", "from", "near", "inside", "outside", "to")

var temporal = setOf(
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"weekday", "weekend", "january", "february", "march", "april", "june",
	"july", "august", "september", "october", "november", "december",
	"daily", "weekly", "monthly", "quarterly", "annually", "yearly", "hourly",
	"morning", "afternoon", "evening", "night", "noon", "midnight",
	"day", "week", "month", "year", "quarter", "season", "hour", "minute",
	"summer", "winter", "spring", "autumn", "holiday",
	"today", "tomorrow", "yesterday", "am", "pm", "q1", "q2", "q3", "q4",
)

var numberWords = setOf(
	"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	"eleven", "twelve", "twenty", "thirty", "forty", "fifty", "hundred", "thousand",
	"million", "billion", "dozen", "half", "double", "twice",
)

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
