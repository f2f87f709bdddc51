package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

var helpSections = []string{"Selection", "Chains, wallets and tokens", "Other"}

// helpMarkdown documents the key bindings as markdown
func helpMarkdown(keys KeyMap) string {
	var b strings.Builder
	b.WriteString("# evmsniper\n\n")
	b.WriteString("Watch ERC-20 balances of your wallets across EVM chains.\n\n")

	for i, group := range keys.FullHelp() {
		fmt.Fprintf(&b, "## %s\n\n", helpSections[i])
		b.WriteString("| Key | Action |\n|-----|--------|\n")
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Pickers\n\n")
	b.WriteString("Type to filter: every word must appear in the name, in any order. ")
	b.WriteString("Use the arrow keys or PgUp/PgDn to move, Enter to choose and Esc to close.\n")
	return b.String()
}

// renderHelp renders the help page for the pager
func renderHelp(keys KeyMap, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		// the terminal cannot be queried for its background while the program runs
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create help renderer: %w", err)
	}
	out, err := renderer.Render(helpMarkdown(keys))
	if err != nil {
		return "", fmt.Errorf("failed to render help: %w", err)
	}
	return out, nil
}
