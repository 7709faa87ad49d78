// Package ui provides the terminal rendering helpers shared by all
// commands: colored status markers, accents, and de-emphasized text.
//
// Color is enabled only when stdout is a terminal that supports it, and
// never when NO_COLOR or TETHER_NO_COLOR is set.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

var colorEnabled = detectColor()

func detectColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TETHER_NO_COLOR") != "" {
		return false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

// RenderPass styles a success marker or message.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn styles a warning.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail styles an error.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderAccent styles a highlighted value such as a record key.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderFaint styles secondary detail such as ids and timestamps.
func RenderFaint(s string) string { return render(faintStyle, s) }
