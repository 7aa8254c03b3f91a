package display

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SGR sequences used by charts and tables. Both are redrawn cell by cell,
// so raw codes are written instead of lipgloss renders.
const (
	reset   = "\033[0m"
	bold    = "\033[1m"
	dim     = "\033[2m"
	red     = "\033[31m"
	green   = "\033[32m"
	yellow  = "\033[33m"
	blue    = "\033[34m"
	magenta = "\033[35m"
	cyan    = "\033[36m"
	white   = "\033[37m"
)

// Codes the cobra help template embeds.
const (
	CReset  = reset
	CBold   = bold
	CYellow = yellow
	CCyan   = cyan
)

func Bold(s string) string  { return bold + s + reset }
func Dim(s string) string   { return dim + s + reset }
func Red(s string) string   { return red + s + reset }
func Green(s string) string { return green + s + reset }
func Cyan(s string) string  { return cyan + s + reset }

// stateTone maps a sampling loop state to its color. An exited process is
// the expected ending; stopped means the user cut the run short.
var stateTone = map[string]string{
	"running": cyan,
	"exited":  green,
	"stopped": yellow,
	"failed":  red,
}

// StateColor returns state in the color of its outcome. Unknown states are
// returned unchanged.
func StateColor(state string) string {
	return paint(false, stateTone[state], state)
}

// paint wraps s in code unless plain output was requested.
func paint(plain bool, code, s string) string {
	if plain || code == "" {
		return s
	}
	return code + s + reset
}

// visibleLen is the printed width of s, ignoring escape sequences.
func visibleLen(s string) int { return lipgloss.Width(s) }

func padRight(s string, width int) string {
	if n := visibleLen(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
