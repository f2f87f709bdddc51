package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Ethereum", "Ethereum"},
		{"single tag", "{yellow-fg}Eth{/yellow-fg}ereum", "Ethereum"},
		{"nested", "{blue-fg}{yellow-fg}B{/yellow-fg}SC{/blue-fg}", "BSC"},
		{"escaped braces", "a{open}b{close}c", "a{b}c"},
		{"unknown brace kept", "{Not A Tag}", "{Not A Tag}"},
		{"unterminated", "abc{def", "abc{def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.in))
		})
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	for _, s := range []string{"", "plain", "{bold}", "}{", "x{yellow-fg}y"} {
		assert.Equal(t, s, Strip(Escape(s)), "input %q", s)
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "{blue-fg}BSC{/blue-fg}", Wrap("blue-fg", "BSC"))
}

func TestCloseTagRemovesMostRecent(t *testing.T) {
	segs := parse("{bold}{red-fg}a{/bold}b{/red-fg}c")
	assert.Equal(t, []segment{
		{text: "a", tags: []string{"bold", "red-fg"}},
		{text: "b", tags: []string{"red-fg"}},
		{text: "c"},
	}, segs)
}

func TestRenderKeepsText(t *testing.T) {
	// styles may or may not emit escape codes depending on the terminal profile
	out := Render("{yellow-fg}Eth{/yellow-fg}ereum")
	assert.Contains(t, out, "Eth")
	assert.Contains(t, out, "ereum")
}
