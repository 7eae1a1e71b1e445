package render

import (
	"gocv.io/x/gocv"
	"image/color"
)

// Font defines the parameters for rendering label text on an image
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.75,
		Color:     White,
		Thickness: 2,
		LineType:  gocv.LineAA,
	}
}
