package tracker

import (
	"math"
)

// rect is a bounding box in top left x, y, width, height format used by
// the byte tracking backend
type rect struct {
	x, y, w, h float64
}

// xyah returns the box as center x, center y, aspect ratio, height, the
// measurement space of the kalman filter
func (r rect) xyah() detectBox {
	return detectBox{
		r.x + r.w/2,
		r.y + r.h/2,
		r.w / r.h,
		r.h,
	}
}

// iou calculates the intersection over union with another rect using
// inclusive pixel bounds
func (r rect) iou(other rect) float64 {

	iw := math.Min(r.x+r.w, other.x+other.w) - math.Max(r.x, other.x) + 1

	if iw <= 0 {
		return 0
	}

	ih := math.Min(r.y+r.h, other.y+other.h) - math.Max(r.y, other.y) + 1

	if ih <= 0 {
		return 0
	}

	ua := (r.w+1)*(r.h+1) + (other.w+1)*(other.h+1) - iw*ih

	return iw * ih / ua
}
