package evaluation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var contractionSuffixes = []string{"'s", "'re", "'ve", "'ll", "'d", "'m"}

// Tokenize splits text into words the way Treebank-style tokenizers do:
// punctuation becomes its own token, contractions are split ("don't" ->
// "do", "n't"), and numbers such as "1,000" or "3.5" stay whole.
func Tokenize(text string) []string {
	text = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`).Replace(text)

	var tokens []string
	for _, word := range strings.Fields(text) {
		tokens = append(tokens, splitWord(word)...)
	}
	return tokens
}

func splitWord(w string) []string {
	var lead, trail []string

	for len(w) > 0 {
		r, size := utf8.DecodeRuneInString(w)
		if !isSplitPunct(r) {
			break
		}
		lead = append(lead, w[:size])
		w = w[size:]
	}

	for len(w) > 0 {
		if strings.HasSuffix(w, "...") {
			trail = append([]string{"..."}, trail...)
			w = w[:len(w)-3]
			continue
		}
		r, size := utf8.DecodeLastRuneInString(w)
		if r == '.' {
			// u.s. and similar abbreviations keep their final period
			if strings.Contains(w[:len(w)-size], ".") {
				break
			}
		} else if !isSplitPunct(r) {
			break
		}
		trail = append([]string{w[len(w)-size:]}, trail...)
		w = w[:len(w)-size]
	}

	tokens := lead
	if w != "" {
		tokens = append(tokens, splitContraction(splitCommas(w))...)
	}
	return append(tokens, trail...)
}

// splitCommas separates commas that are not between two digits.
func splitCommas(w string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(w); i++ {
		if w[i] != ',' {
			continue
		}
		if i > 0 && i < len(w)-1 && isDigit(w[i-1]) && isDigit(w[i+1]) {
			continue
		}
		if i > start {
			parts = append(parts, w[start:i])
		}
		parts = append(parts, ",")
		start = i + 1
	}
	if start < len(w) {
		parts = append(parts, w[start:])
	}
	return parts
}

func splitContraction(parts []string) []string {
	if len(parts) == 0 {
		return parts
	}
	last := parts[len(parts)-1]
	head := parts[:len(parts)-1]

	if len(last) > 3 && strings.HasSuffix(last, "n't") {
		return append(head, last[:len(last)-3], "n't")
	}
	for _, suffix := range contractionSuffixes {
		if len(last) > len(suffix) && strings.HasSuffix(last, suffix) {
			return append(head, last[:len(last)-len(suffix)], suffix)
		}
	}
	return parts
}

func isSplitPunct(r rune) bool {
	switch r {
	case ',', ';', ':', '!', '?', '(', ')', '[', ']', '{', '}', '"', '\'', '`', '$', '%', '&', '#', '@':
		return true
	}
	return unicode.Is(unicode.Pd, r) && r != '-'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
