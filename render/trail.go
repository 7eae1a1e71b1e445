package render

import (
	"image"
	"image/color"
	"math"

	objtrail "github.com/objtrail/go-objtrail"
	"gocv.io/x/gocv"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the
	// same class color as that of the bounding box.  If set to false then
	// use the color specified at LineColor
	LineSame  bool
	LineColor color.RGBA
	// Taper defines if trail segments thin out from the oldest point
	// toward the newest.  If set to false every segment is drawn at
	// LineThickness
	Taper         bool
	LineThickness int
	// CircleSame defines if the color of the head circle should be the
	// same class color as that of the bounding box.  If set to false then
	// use the color specified at CircleColor
	CircleSame  bool
	CircleColor color.RGBA
	// CircleRadius is the radius of the circle drawn on the newest trail
	// point.  A radius of zero disables the circle
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      true,
		LineColor:     Yellow,
		Taper:         true,
		LineThickness: 2,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  0,
	}
}

// TrailThickness returns the line thickness for the trail segment ending at
// the point with index idx counted from the oldest recorded point.
// Thickness falls off with the square root of the index so the oldest end
// of the trail draws heavier than recent movement
func TrailThickness(idx int) int {
	return int(math.Sqrt(64/float64(idx+1)) * 2)
}

// Trail draws the motion history of each identified detection on the
// source image.
func Trail(img *gocv.Mat, dets []objtrail.IdentifiedDetection,
	trails *objtrail.TrailStore, style TrailStyle) {

	for _, det := range dets {

		if !det.Identified() {
			continue
		}

		// Get the color for this object
		objClr := ClassColor(det.ClassID)

		// determine style colors to use
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		// draw trail line showing tracking history
		points := trails.TrailOf(*det.Identity)

		if len(points) < 2 {
			continue
		}

		for i := 1; i < len(points); i++ {

			thickness := style.LineThickness
			if style.Taper {
				thickness = TrailThickness(i)
			}

			// draw line segment of trail
			gocv.Line(img,
				image.Pt(points[i-1].X, points[i-1].Y),
				image.Pt(points[i].X, points[i].Y),
				lineClr, thickness,
			)

			if i == len(points)-1 && style.CircleRadius > 0 {
				// draw center point circle on current rect/box
				gocv.Circle(img, image.Pt(points[i].X, points[i].Y),
					style.CircleRadius, circleClr, -1)
			}
		}
	}
}
