// Package ui provides terminal rendering helpers for the CLI layer.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// RenderAccent renders s in the accent color.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass renders s in the success color.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders s in the warning color.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderErr renders s in the error color.
func RenderErr(s string) string { return errStyle.Render(s) }

// RenderDim renders s dimmed.
func RenderDim(s string) string { return dimStyle.Render(s) }
