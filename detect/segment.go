package detect

import (
	"image"
	"math"

	clipper "github.com/ctessum/go.clipper"
	"gocv.io/x/gocv"

	objtrail "github.com/objtrail/go-objtrail"
)

// MaskPolygon extracts the outline of the largest region of a binary mask
// as a polygon with vertices normalized to [0,1] in both axes.  A positive
// unclipRatio expands the outline outward in proportion to its area before
// normalization.  Returns nil when the mask contains no usable region
func MaskPolygon(mask objtrail.Mask, unclipRatio float32) objtrail.Polygon {

	w, h := mask.Dims()

	if w == 0 || h == 0 {
		return nil
	}

	bytes := make([]uint8, w*h)

	for y, row := range mask {
		for x, v := range row {
			if v > 0.5 {
				bytes[y*w+x] = 255
			}
		}
	}

	bin, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, bytes)

	if err != nil {
		return nil
	}

	defer bin.Close()

	contours := gocv.FindContours(bin, gocv.RetrievalExternal,
		gocv.ChainApproxSimple)
	defer contours.Close()

	// keep the largest outline only
	best := -1
	bestArea := 0.0

	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			bestArea = area
			best = i
		}
	}

	if best < 0 {
		return nil
	}

	contour := contours.At(best)

	epsilon := 0.002 * gocv.ArcLength(contour, true)
	approx := gocv.ApproxPolyDP(contour, epsilon, true)
	defer approx.Close()

	points := approx.ToPoints()

	if len(points) < 3 {
		return nil
	}

	if unclipRatio > 0 {
		points = unClip(points, unclipRatio)

		if len(points) < 3 {
			return nil
		}
	}

	poly := make(objtrail.Polygon, 0, len(points))

	for _, pt := range points {
		poly = append(poly, [2]float32{
			clampf32(float32(pt.X)/float32(w), 0, 1),
			clampf32(float32(pt.Y)/float32(h), 0, 1),
		})
	}

	return poly
}

// unClip expands a closed outline outward by a distance derived from its
// area, perimeter and the given ratio
func unClip(points []image.Point, unclipRatio float32) []image.Point {

	distance := contourDistance(points, unclipRatio)

	var path clipper.Path

	for _, pt := range points {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(pt.X),
			Y: clipper.CInt(pt.Y),
		})
	}

	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)

	solution := co.Execute(float64(distance))

	if len(solution) == 0 {
		return nil
	}

	// the offset can split the outline, keep the largest ring
	ring := solution[0]

	for _, sol := range solution[1:] {
		if len(sol) > len(ring) {
			ring = sol
		}
	}

	expanded := make([]image.Point, 0, len(ring))

	for _, pt := range ring {
		expanded = append(expanded, image.Point{X: int(pt.X), Y: int(pt.Y)})
	}

	return expanded
}

// contourDistance returns the offset distance for an outline based on its
// area and perimeter scaled by the unclip ratio
func contourDistance(points []image.Point, unclipRatio float32) float32 {

	n := len(points)
	area := float32(0)
	perimeter := float32(0)

	for i := 0; i < n; i++ {
		j := (i + 1) % n

		area += float32(points[i].X*points[j].Y - points[i].Y*points[j].X)

		dx := float32(points[i].X - points[j].X)
		dy := float32(points[i].Y - points[j].Y)
		perimeter += float32(math.Sqrt(float64(dx*dx + dy*dy)))
	}

	if perimeter == 0 {
		return 0
	}

	area = float32(math.Abs(float64(area / 2.0)))

	return area * unclipRatio / perimeter
}
