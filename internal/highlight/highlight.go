// Package highlight marks the parts of a candidate name matched by filter tokens.
package highlight

import (
	"strings"

	"evmsniper/internal/markup"
)

// Marker is the pair of tags placed around a highlighted run
type Marker struct {
	Open  string
	Close string
}

// Default highlights matches in yellow
var Default = Marker{Open: "{yellow-fg}", Close: "{/yellow-fg}"}

// CurrentTag marks the entry that was selected before the prompt opened
const CurrentTag = "blue-fg"

// Tokens splits a query into its whitespace separated, non-empty tokens
func Tokens(query string) []string {
	return strings.Fields(query)
}

// Matches reports whether every token is a substring of name
func Matches(name string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(name, token) {
			return false
		}
	}
	return true
}

// Coverage returns a mask over the bytes of text that are covered by at least
// one occurrence of a token. Tokens are literal text, never patterns.
// Each token is scanned left to right for non-overlapping occurrences, so
// "aa" covers only the first two bytes of "aaa".
func Coverage(text string, tokens []string) []bool {
	mask := make([]bool, len(text))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		for start := 0; start <= len(text)-len(token); {
			i := strings.Index(text[start:], token)
			if i < 0 {
				break
			}
			i += start
			for j := i; j < i+len(token); j++ {
				mask[j] = true
			}
			start = i + len(token)
		}
	}
	return mask
}

// Highlight annotates text with the default marker
func Highlight(text string, tokens []string) string {
	return Default.Apply(text, tokens)
}

// Apply annotates every run of text covered by a token match
func (m Marker) Apply(text string, tokens []string) string {
	if len(tokens) == 0 {
		return markup.Escape(text)
	}
	mask := Coverage(text, tokens)

	var b strings.Builder
	index, open := 0, false
	for i, covered := range mask {
		if covered == open {
			continue
		}
		b.WriteString(markup.Escape(text[index:i]))
		if covered {
			b.WriteString(m.Open)
		} else {
			b.WriteString(m.Close)
		}
		index, open = i, covered
	}
	b.WriteString(markup.Escape(text[index:]))
	if open {
		b.WriteString(m.Close)
	}
	return b.String()
}

// Current wraps a label with the current-selection marker
func Current(label string) string {
	return markup.Wrap(CurrentTag, label)
}
