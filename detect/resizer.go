package detect

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Resizer handles scaling of source frames to the model input dimensions
// and mapping model space coordinates back to source space
type Resizer struct {
	// srcWidth and srcHeight are the source frame dimensions
	srcWidth  int
	srcHeight int
	// dstWidth and dstHeight are the model input dimensions
	dstWidth  int
	dstHeight int
	// tempMat is scratch space reused across resize calls
	tempMat gocv.Mat
	// letterbox parameters
	xPad    int
	yPad    int
	scale   float32
	resizeW int
	resizeH int
}

// resizerFor returns r when it already matches the given source
// dimensions, otherwise closes it and creates a replacement
func resizerFor(r *Resizer, srcWidth, srcHeight, dstWidth, dstHeight int) *Resizer {

	if r != nil && r.SrcWidth() == srcWidth && r.SrcHeight() == srcHeight {
		return r
	}

	if r != nil {
		r.Close()
	}

	return NewResizer(srcWidth, srcHeight, dstWidth, dstHeight)
}

// NewResizer returns a resizer scaling frames of the given source size to
// the model input size
func NewResizer(srcWidth, srcHeight, dstWidth, dstHeight int) *Resizer {

	r := &Resizer{
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		dstWidth:  dstWidth,
		dstHeight: dstHeight,
		tempMat:   gocv.NewMat(),
	}

	r.preCalc()

	return r
}

// Close frees the scratch space used during resizing
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// preCalc computes the letterbox scale and padding for the configured
// dimensions
func (r *Resizer) preCalc() {

	r.resizeW = r.dstWidth
	r.resizeH = r.dstHeight

	scaleW := float32(r.dstWidth) / float32(r.srcWidth)
	scaleH := float32(r.dstHeight) / float32(r.srcHeight)
	r.scale = scaleH

	if scaleW < scaleH {
		r.scale = scaleW
		r.resizeH = int(float32(r.srcHeight) * r.scale)
	} else {
		r.resizeW = int(float32(r.srcWidth) * r.scale)
	}

	r.yPad = (r.dstHeight - r.resizeH) / 2
	r.xPad = (r.dstWidth - r.resizeW) / 2
}

// LetterBoxResize scales the source frame into dest at model input size,
// keeping the aspect ratio and padding the remainder with the given color
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	gocv.Resize(src, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(r.tempMat, dest, r.yPad, r.dstHeight-r.resizeH-r.yPad,
		r.xPad, r.dstWidth-r.resizeW-r.xPad, gocv.BorderConstant, color)
}

// SourceCoord maps a point in letterboxed model space back to source
// frame space
func (r *Resizer) SourceCoord(x, y float32) (float32, float32) {
	return (x - float32(r.xPad)) / r.scale, (y - float32(r.yPad)) / r.scale
}

// ScaleFactor returns the scale factor applied to the source frame
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the horizontal letterbox padding in model space
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the vertical letterbox padding in model space
func (r *Resizer) YPad() int {
	return r.yPad
}

// SrcWidth returns the width of the source frame
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source frame
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}

// DstWidth returns the model input width
func (r *Resizer) DstWidth() int {
	return r.dstWidth
}

// DstHeight returns the model input height
func (r *Resizer) DstHeight() int {
	return r.dstHeight
}
