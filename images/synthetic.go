package images

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// PatternGenerator creates deterministic BGR frames for repeatable runs.
//
// Frames hold a grid of solid blocks on a dark background. Block corners are
// strong FAST responses and track cleanly under small shifts, so a shifted
// frame produces a known ground-truth motion.
//
// @example
// gen := images.NewPatternGenerator(320, 240)
// frame := gen.Frame(0, 0)
// defer frame.Close()
type PatternGenerator struct {
	width  int
	height int
	cell   int
	block  int
}

// NewPatternGenerator creates a generator for width x height frames.
func NewPatternGenerator(width, height int) *PatternGenerator {
	return &PatternGenerator{
		width:  width,
		height: height,
		cell:   40,
		block:  16,
	}
}

// Frame renders the pattern displaced by (dx, dy) pixels.
//
// Arguments:
//   - dx: Horizontal displacement in pixels.
//   - dy: Vertical displacement in pixels.
//
// Returns:
//   - gocv.Mat: An 8UC3 BGR frame. The caller owns it.
func (g *PatternGenerator) Frame(dx, dy int) gocv.Mat {
	frame := gocv.NewMatWithSize(g.height, g.width, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(30, 30, 30, 0))

	for row := -1; row*g.cell < g.height+g.cell; row++ {
		for col := -1; col*g.cell < g.width+g.cell; col++ {
			x := col*g.cell + g.cell/4 + dx
			y := row*g.cell + g.cell/4 + dy
			rect := image.Rect(x, y, x+g.block, y+g.block)
			gocv.Rectangle(&frame, rect, g.blockColor(row, col), -1)
		}
	}

	return frame
}

// Uniform renders a featureless frame.
func (g *PatternGenerator) Uniform() gocv.Mat {
	frame := gocv.NewMatWithSize(g.height, g.width, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(128, 128, 128, 0))
	return frame
}

// blockColor varies hue across the grid so saturation is non-trivial.
func (g *PatternGenerator) blockColor(row, col int) color.RGBA {
	palette := []color.RGBA{
		{R: 230, G: 230, B: 230},
		{R: 220, G: 60, B: 60},
		{R: 60, G: 200, B: 80},
		{R: 70, G: 90, B: 230},
	}
	return palette[((row+col)%len(palette)+len(palette))%len(palette)]
}
