package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	summaryTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	summaryKey = lipgloss.NewStyle().
			Foreground(lipgloss.Color("37"))

	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// Summary is the closing report of one recording.
type Summary struct {
	Title  string
	State  string
	Fields [][2]string
}

// RenderSummary draws s in a rounded box, or as aligned plain lines.
func RenderSummary(w io.Writer, plain bool, s Summary) {
	keyWidth := len("state")
	for _, f := range s.Fields {
		if len(f[0]) > keyWidth {
			keyWidth = len(f[0])
		}
	}

	var lines []string
	row := func(k, v string) {
		key := padRight(k, keyWidth)
		if !plain {
			key = summaryKey.Render(key)
		}
		lines = append(lines, key+"  "+v)
	}

	state := s.State
	if !plain {
		state = StateColor(state)
	}
	row("state", state)
	for _, f := range s.Fields {
		row(f[0], f[1])
	}

	if plain {
		if s.Title != "" {
			fmt.Fprintln(w, s.Title)
		}
		for _, l := range lines {
			fmt.Fprintln(w, "  "+l)
		}
		return
	}

	body := strings.Join(lines, "\n")
	if s.Title != "" {
		body = summaryTitle.Render(s.Title) + "\n" + body
	}
	fmt.Fprintln(w, summaryBox.Render(body))
}
