package ui

import (
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/noborus/ov/oviewer"
)

// pagerClosedMsg reports the end of a pager session
type pagerClosedMsg struct {
	title string
	err   error
}

// pagerCommand runs ov over a string. It satisfies tea.ExecCommand, so the
// program releases the terminal while ov owns it and restores it afterwards.
type pagerCommand struct {
	content string
}

func (c *pagerCommand) Run() error {
	root, err := oviewer.NewRoot(strings.NewReader(c.content))
	if err != nil {
		return err
	}

	// nothing is written back to our screen on exit
	config := oviewer.NewConfig()
	config.IsWriteOnExit = false
	config.IsWriteOriginal = false
	root.SetConfig(config)

	return root.Run()
}

// ov opens the terminal itself
func (c *pagerCommand) SetStdin(io.Reader)  {}
func (c *pagerCommand) SetStdout(io.Writer) {}
func (c *pagerCommand) SetStderr(io.Writer) {}

// showInPager pages content with ov
func showInPager(title, content string) tea.Cmd {
	if content == "" {
		content = "(empty)\n"
	}
	return tea.Exec(&pagerCommand{content: content}, func(err error) tea.Msg {
		return pagerClosedMsg{title: title, err: err}
	})
}
