// Package markup implements the inline tag convention used for list labels and panel text.
//
// A tag is written as {name} and closed with {/name}. Supported names are
// <color>-fg, <color>-bg, bold and underline. Literal braces are written as
// {open} and {close}; Escape does that for arbitrary text.
package markup

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var tagRE = regexp.MustCompile(`^/?[a-z]+(-[a-z]+)?$`)

// Colors maps tag color names to terminal colors
var Colors = map[string]lipgloss.Color{
	"black":   lipgloss.Color("0"),
	"red":     lipgloss.Color("203"),
	"green":   lipgloss.Color("78"),
	"yellow":  lipgloss.Color("214"),
	"blue":    lipgloss.Color("33"),
	"magenta": lipgloss.Color("170"),
	"cyan":    lipgloss.Color("51"),
	"white":   lipgloss.Color("255"),
	"grey":    lipgloss.Color("241"),
	"gray":    lipgloss.Color("241"),
}

// Escape makes text safe to embed between tags
func Escape(s string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '{':
			b.WriteString("{open}")
		case '}':
			b.WriteString("{close}")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Wrap surrounds s with the given tag
func Wrap(tag, s string) string {
	return "{" + tag + "}" + s + "{/" + tag + "}"
}

// segment is a run of text with the tags active over it
type segment struct {
	text string
	tags []string
}

func parse(s string) []segment {
	var segs []segment
	var tags []string
	var text strings.Builder

	flush := func() {
		if text.Len() == 0 {
			return
		}
		segs = append(segs, segment{text: text.String(), tags: append([]string(nil), tags...)})
		text.Reset()
	}

	for i := 0; i < len(s); {
		if s[i] != '{' {
			text.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			text.WriteString(s[i:])
			break
		}
		name := s[i+1 : i+end]
		switch {
		case name == "open":
			text.WriteByte('{')
		case name == "close":
			text.WriteByte('}')
		case tagRE.MatchString(name):
			flush()
			if strings.HasPrefix(name, "/") {
				tags = closeTag(tags, name[1:])
			} else {
				tags = append(tags, name)
			}
		default:
			// not a tag, keep the brace as text
			text.WriteByte('{')
			i++
			continue
		}
		i += end + 1
	}
	flush()
	return segs
}

// closeTag removes the most recent occurrence of name
func closeTag(tags []string, name string) []string {
	for i := len(tags) - 1; i >= 0; i-- {
		if tags[i] == name {
			return append(tags[:i:i], tags[i+1:]...)
		}
	}
	return tags
}

// Strip removes all tags and resolves escaped braces
func Strip(s string) string {
	var b strings.Builder
	for _, seg := range parse(s) {
		b.WriteString(seg.text)
	}
	return b.String()
}

// Render converts markup into styled terminal output
func Render(s string) string {
	return RenderWith(lipgloss.NewStyle(), s)
}

// RenderWith renders markup on top of a base style
func RenderWith(base lipgloss.Style, s string) string {
	var b strings.Builder
	for _, seg := range parse(s) {
		st := styleFor(base, seg.tags)
		// lipgloss pads multi-line blocks to equal width, so style line by line
		for i, line := range strings.Split(seg.text, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(st.Render(line))
			}
		}
	}
	return b.String()
}

func styleFor(base lipgloss.Style, tags []string) lipgloss.Style {
	st := base
	for _, tag := range tags {
		switch {
		case tag == "bold":
			st = st.Bold(true)
		case tag == "underline":
			st = st.Underline(true)
		case strings.HasSuffix(tag, "-fg"):
			if c, ok := Colors[strings.TrimSuffix(tag, "-fg")]; ok {
				st = st.Foreground(c)
			}
		case strings.HasSuffix(tag, "-bg"):
			if c, ok := Colors[strings.TrimSuffix(tag, "-bg")]; ok {
				st = st.Background(c)
			}
		}
	}
	return st
}
