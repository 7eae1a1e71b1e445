package detect

import (
	"testing"

	objtrail "github.com/objtrail/go-objtrail"
)

// squareMask returns a size x size mask with a filled square between lo
// and hi inclusive
func squareMask(size, lo, hi int) objtrail.Mask {

	mask := make(objtrail.Mask, size)

	for y := range mask {
		row := make([]float32, size)

		if y >= lo && y <= hi {
			for x := lo; x <= hi; x++ {
				row[x] = 1
			}
		}

		mask[y] = row
	}

	return mask
}

// polygonBounds returns the min and max vertex coordinates of a polygon
func polygonBounds(poly objtrail.Polygon) (minX, minY, maxX, maxY float32) {

	minX, minY = 1, 1

	for _, pt := range poly {
		if pt[0] < minX {
			minX = pt[0]
		}
		if pt[0] > maxX {
			maxX = pt[0]
		}
		if pt[1] < minY {
			minY = pt[1]
		}
		if pt[1] > maxY {
			maxY = pt[1]
		}
	}

	return
}

func TestMaskPolygon(t *testing.T) {

	mask := squareMask(20, 5, 14)

	poly := MaskPolygon(mask, 0)

	if len(poly) < 3 {
		t.Fatalf("expected an outline, got %v", poly)
	}

	minX, minY, maxX, maxY := polygonBounds(poly)

	// square covers pixels 5 to 14 of 20, normalized 0.25 to 0.70
	if minX < 0.2 || minY < 0.2 || maxX > 0.8 || maxY > 0.8 {
		t.Errorf("outline outside expected bounds: (%f,%f) to (%f,%f)",
			minX, minY, maxX, maxY)
	}

	for _, pt := range poly {
		if pt[0] < 0 || pt[0] > 1 || pt[1] < 0 || pt[1] > 1 {
			t.Errorf("vertex not normalized: %v", pt)
		}
	}
}

func TestMaskPolygonUnclip(t *testing.T) {

	mask := squareMask(20, 5, 14)

	tight := MaskPolygon(mask, 0)
	expanded := MaskPolygon(mask, 1.0)

	if len(tight) < 3 || len(expanded) < 3 {
		t.Fatalf("expected outlines, got %v and %v", tight, expanded)
	}

	tMinX, tMinY, tMaxX, tMaxY := polygonBounds(tight)
	eMinX, eMinY, eMaxX, eMaxY := polygonBounds(expanded)

	if eMinX >= tMinX || eMinY >= tMinY || eMaxX <= tMaxX || eMaxY <= tMaxY {
		t.Errorf("expected expanded outline beyond (%f,%f)-(%f,%f), got (%f,%f)-(%f,%f)",
			tMinX, tMinY, tMaxX, tMaxY, eMinX, eMinY, eMaxX, eMaxY)
	}

	for _, pt := range expanded {
		if pt[0] < 0 || pt[0] > 1 || pt[1] < 0 || pt[1] > 1 {
			t.Errorf("vertex not normalized: %v", pt)
		}
	}
}

func TestMaskPolygonEmpty(t *testing.T) {

	if poly := MaskPolygon(nil, 0); poly != nil {
		t.Errorf("expected nil outline for nil mask, got %v", poly)
	}

	// mask without any object pixels has no outline
	empty := make(objtrail.Mask, 8)

	for y := range empty {
		empty[y] = make([]float32, 8)
	}

	if poly := MaskPolygon(empty, 0); poly != nil {
		t.Errorf("expected nil outline for empty mask, got %v", poly)
	}
}
