package display

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
)

// ChartSeries represents one data series to plot.
type ChartSeries struct {
	Name   string
	Color  string // ANSI color code (e.g., green, cyan)
	Points []ChartPoint
}

// ChartPoint is a single (timestamp, value) pair. A Missing point breaks the
// line without being drawn.
type ChartPoint struct {
	Time    int64 // Unix milliseconds
	Value   float64
	Missing bool
}

func (p ChartPoint) drawable() bool {
	return !p.Missing && !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0)
}

// ChartConfig configures the chart rendering.
type ChartConfig struct {
	Title      string
	Width      int                  // character columns for plot area (default 60)
	Height     int                  // character rows for plot area (default 15)
	YFormatter func(float64) string // custom Y-axis label formatter
	Plain      bool                 // no ANSI colors, for files
}

// seriesColors is the palette for multi-series charts.
var seriesColors = []string{green, cyan, yellow, magenta, blue, red, white}

// AssignSeriesColors assigns colors from the palette to series without one.
func AssignSeriesColors(series []ChartSeries) {
	for i := range series {
		if series[i].Color == "" {
			series[i].Color = seriesColors[i%len(seriesColors)]
		}
	}
}

// brailleCanvas is a 2D grid of braille dot-pixels.
// Each character cell is 2 columns × 4 rows of sub-pixels.
// (0,0) is top-left. x ∈ [0, width*2), y ∈ [0, height*4).
type brailleCanvas struct {
	width  int       // in characters
	height int       // in characters
	dots   [][]uint8 // [height][width] accumulated braille bitmasks
}

func newBrailleCanvas(w, h int) *brailleCanvas {
	dots := make([][]uint8, h)
	for i := range dots {
		dots[i] = make([]uint8, w)
	}
	return &brailleCanvas{width: w, height: h, dots: dots}
}

// set activates a dot at sub-pixel coordinates (px, py).
func (c *brailleCanvas) set(px, py int) {
	if px < 0 || px >= c.width*2 || py < 0 || py >= c.height*4 {
		return
	}
	cx := px / 2
	cy := py / 4
	dx := px % 2 // 0=left, 1=right
	dy := py % 4 // 0=top, 3=bottom

	// Braille dot bit mapping:
	//   Left col (dx=0): rows 0-2 → bits 0-2 (0x01,0x02,0x04), row 3 → bit 6 (0x40)
	//   Right col (dx=1): rows 0-2 → bits 3-5 (0x08,0x10,0x20), row 3 → bit 7 (0x80)
	var bit uint8
	if dx == 0 {
		if dy < 3 {
			bit = 1 << uint(dy)
		} else {
			bit = 0x40
		}
	} else {
		if dy < 3 {
			bit = 1 << uint(dy+3)
		} else {
			bit = 0x80
		}
	}
	c.dots[cy][cx] |= bit
}

// drawLine draws a line between two sub-pixel coordinates using Bresenham's.
func (c *brailleCanvas) drawLine(x0, y0, x1, y1 int) {
	dx := iabs(x1 - x0)
	dy := iabs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy

	for {
		c.set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// render returns the canvas as a slice of strings (one per row).
func (c *brailleCanvas) render() []string {
	lines := make([]string, c.height)
	for y := 0; y < c.height; y++ {
		var sb strings.Builder
		for x := 0; x < c.width; x++ {
			sb.WriteRune(rune(0x2800 + int(c.dots[y][x])))
		}
		lines[y] = sb.String()
	}
	return lines
}

func iabs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// RenderChart renders a braille line chart to the writer.
// Multiple series are overlaid with per-series colors.
func RenderChart(w io.Writer, cfg ChartConfig, series []ChartSeries) {
	if len(series) == 0 {
		return
	}

	width := cfg.Width
	if width <= 0 {
		width = 60
	}
	height := cfg.Height
	if height <= 0 {
		height = 15
	}

	// Compute global Y min/max and time range.
	var yMin, yMax float64
	var tMin, tMax int64
	first := true
	for _, s := range series {
		for _, p := range s.Points {
			if !p.drawable() {
				continue
			}
			if first {
				yMin, yMax = p.Value, p.Value
				tMin, tMax = p.Time, p.Time
				first = false
				continue
			}
			yMin = math.Min(yMin, p.Value)
			yMax = math.Max(yMax, p.Value)
			if p.Time < tMin {
				tMin = p.Time
			}
			if p.Time > tMax {
				tMax = p.Time
			}
		}
	}
	if first {
		return // no data
	}

	// Pad Y range for aesthetics.
	yRange := yMax - yMin
	if yRange == 0 {
		yRange = 1
		yMax = yMin + 1
	}
	pad := yRange * 0.05
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	tRange := tMax - tMin
	if tRange == 0 {
		tRange = 1
	}

	pxWidth := width * 2
	pxHeight := height * 4

	// One canvas per series for per-series coloring.
	canvases := make([]*brailleCanvas, len(series))
	for si, s := range series {
		canvases[si] = newBrailleCanvas(width, height)
		prevPx, prevPy := -1, -1
		for _, p := range s.Points {
			if !p.drawable() {
				prevPx, prevPy = -1, -1
				continue
			}
			px := clamp(int(float64(p.Time-tMin)/float64(tRange)*float64(pxWidth-1)), 0, pxWidth-1)
			py := clamp(int((1.0-(p.Value-yMin)/(yMax-yMin))*float64(pxHeight-1)), 0, pxHeight-1)
			if prevPx >= 0 {
				canvases[si].drawLine(prevPx, prevPy, px, py)
			} else {
				canvases[si].set(px, py)
			}
			prevPx, prevPy = px, py
		}
	}

	yFmt := cfg.YFormatter
	if yFmt == nil {
		yFmt = func(v float64) string { return fmt.Sprintf("%.1f", v) }
	}
	yLabelWidth := 10

	if cfg.Title != "" {
		fmt.Fprintf(w, "  %s\n", paint(cfg.Plain, bold, cfg.Title))
	}

	// Composite output: per-cell, pick color from the series that drew dots.
	for row := 0; row < height; row++ {
		label := ""
		switch {
		case row == 0:
			label = yFmt(yMax)
		case row == height/4:
			label = yFmt(yMin + (yMax-yMin)*0.75)
		case row == height/2:
			label = yFmt(yMin + (yMax-yMin)*0.5)
		case row == height*3/4:
			label = yFmt(yMin + (yMax-yMin)*0.25)
		case row == height-1:
			label = yFmt(yMin)
		}
		fmt.Fprintf(w, "  %s %s", paint(cfg.Plain, dim, fmt.Sprintf("%*s", yLabelWidth, label)), paint(cfg.Plain, dim, "│"))

		for col := 0; col < width; col++ {
			chosen := -1
			var merged uint8
			for si, cv := range canvases {
				if cv.dots[row][col] != 0 {
					merged |= cv.dots[row][col]
					if chosen < 0 {
						chosen = si
					}
				}
			}
			if merged == 0 {
				fmt.Fprint(w, string(rune(0x2800))) // blank braille
				continue
			}
			fmt.Fprint(w, paint(cfg.Plain, seriesColor(series[chosen]), string(rune(0x2800+int(merged)))))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "  %*s %s\n", yLabelWidth, "", paint(cfg.Plain, dim, "└"+strings.Repeat("─", width)))

	printTimeAxis(w, cfg.Plain, tMin, tMax, width, yLabelWidth)

	// Legend when multiple series.
	if len(series) > 1 {
		fmt.Fprintf(w, "  %*s  ", yLabelWidth, "")
		for i, s := range series {
			if i > 0 {
				fmt.Fprint(w, "  ")
			}
			fmt.Fprintf(w, "%s %s", paint(cfg.Plain, seriesColor(s), "━━"), s.Name)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func seriesColor(s ChartSeries) string {
	if s.Color == "" {
		return cyan
	}
	return s.Color
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func printTimeAxis(w io.Writer, plain bool, tMin, tMax int64, width, yLabelWidth int) {
	numLabels := 5
	if width < 40 {
		numLabels = 3
	}

	layout := "15:04:05"
	if tMax-tMin >= int64(24*time.Hour/time.Millisecond) {
		layout = "01-02 15:04"
	}

	labels := make([]string, numLabels)
	positions := make([]int, numLabels)
	for i := 0; i < numLabels; i++ {
		ts := tMin + int64(i)*((tMax-tMin)/int64(numLabels-1))
		labels[i] = time.UnixMilli(ts).Format(layout)
		positions[i] = i * (width - len(labels[i])) / (numLabels - 1)
	}

	fmt.Fprintf(w, "  %*s  ", yLabelWidth, "")
	pos := 0
	for i := 0; i < numLabels; i++ {
		gap := positions[i] - pos
		if gap < 0 {
			gap = 0
		}
		fmt.Fprint(w, strings.Repeat(" ", gap))
		fmt.Fprint(w, paint(plain, dim, labels[i]))
		pos += gap + len(labels[i])
	}
	fmt.Fprintln(w)
}

// Predefined Y-axis formatters.

// FormatCPUAxis formats a CPU percentage value for the Y axis.
func FormatCPUAxis(v float64) string {
	if v >= 100 {
		return fmt.Sprintf("%.0f%%", v)
	}
	return fmt.Sprintf("%.1f%%", v)
}

// FormatMemoryAxis formats a byte count for the Y axis.
func FormatMemoryAxis(v float64) string {
	if v < 0 {
		v = 0
	}
	return datasize.ByteSize(uint64(v)).HumanReadable()
}

// FormatSecondsAxis formats CPU seconds spent within a window.
func FormatSecondsAxis(v float64) string {
	if v >= 10 {
		return fmt.Sprintf("%.0fs", v)
	}
	return fmt.Sprintf("%.2fs", v)
}

// FormatCountAxis formats an operation count, abbreviating thousands.
func FormatCountAxis(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fG", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e4:
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
