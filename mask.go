package objtrail

import (
	"image"

	"golang.org/x/image/draw"
)

// ResizeMask rescales a segmentation mask to the given dimensions using
// bilinear interpolation.  A binary input mask produces fractional values
// along object edges after rescaling, which is the intended soft boundary
// for overlay rendering.  Returns nil for an empty mask or degenerate
// target dimensions.
func ResizeMask(m Mask, width, height int) Mask {

	mw, mh := m.Dims()

	if mw == 0 || mh == 0 || width <= 0 || height <= 0 {
		return nil
	}

	src := image.NewGray(image.Rect(0, 0, mw, mh))

	for y := 0; y < mh; y++ {
		row := m[y]
		for x := 0; x < mw; x++ {
			v := row[x]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			src.Pix[y*src.Stride+x] = uint8(v*255 + 0.5)
		}
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make(Mask, height)

	for y := 0; y < height; y++ {
		row := make([]float32, width)
		for x := 0; x < width; x++ {
			row[x] = float32(dst.Pix[y*dst.Stride+x]) / 255
		}
		out[y] = row
	}

	return out
}
