package display

import (
	"os"

	"emperror.dev/errors"
	"golang.org/x/term"
)

// ErrRenderUnavailable is returned when charts are requested on an output
// that cannot display them.
var ErrRenderUnavailable = errors.New("chart rendering unavailable: stdout is not a terminal")

// Capability describes what an output can render. It is resolved once at
// startup and passed to whatever draws.
type Capability struct {
	Terminal bool
	Width    int
	Height   int
}

// DetectCapability inspects f, usually os.Stdout.
func DetectCapability(f *os.File) Capability {
	if f == nil {
		return Capability{}
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return Capability{}
	}
	c := Capability{Terminal: true, Width: 80, Height: 24}
	if w, h, err := term.GetSize(fd); err == nil && w > 0 {
		c.Width, c.Height = w, h
	}
	return c
}

// Require fails unless the output is a terminal.
func (c Capability) Require() error {
	if !c.Terminal {
		return ErrRenderUnavailable
	}
	return nil
}

// ChartWidth is the plot area that fits beside the axis labels.
func (c Capability) ChartWidth() int {
	w := c.Width - 16
	if w < 20 {
		return 60
	}
	if w > 200 {
		return 200
	}
	return w
}
