package ui

import "github.com/charmbracelet/lipgloss"

var statusStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingLeft(1)
