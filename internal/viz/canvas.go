package viz

import (
	"strings"
)

// Each braille cell holds a 2x4 grid of dots; bits by (row, col).
var brailleDots = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a braille dot grid of Cols x Rows characters, addressed in dots
// (Cols*2 wide, Rows*4 tall) with y growing downward.
type Canvas struct {
	Cols, Rows int
	cells      []rune
}

func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{Cols: cols, Rows: rows, cells: make([]rune, cols*rows)}
	c.Clear()
	return c
}

func (c *Canvas) DotWidth() int  { return c.Cols * 2 }
func (c *Canvas) DotHeight() int { return c.Rows * 4 }

func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = brailleBlank
	}
}

// Set lights one dot. Out-of-range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= c.DotWidth() || y >= c.DotHeight() {
		return
	}
	c.cells[(y/4)*c.Cols+x/2] |= brailleDots[y%4][x%2]
}

// IsSet reports whether the dot at x, y is lit.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x >= c.DotWidth() || y >= c.DotHeight() {
		return false
	}
	return c.cells[(y/4)*c.Cols+x/2]&brailleDots[y%4][x%2] != 0
}

// Line draws a Bresenham line between two dots.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
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

func (c *Canvas) String() string {
	var b strings.Builder
	for r := 0; r < c.Rows; r++ {
		b.WriteString(string(c.cells[r*c.Cols : (r+1)*c.Cols]))
		if r < c.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
