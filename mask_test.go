package objtrail

import (
	"testing"
)

func TestResizeMask(t *testing.T) {

	src := Mask{
		{1, 0},
		{0, 0},
	}

	out := ResizeMask(src, 4, 4)

	if w, h := out.Dims(); w != 4 || h != 4 {
		t.Fatalf("expected 4x4 mask, got %dx%d", w, h)
	}

	for y, row := range out {
		for x, v := range row {
			if v < 0 || v > 1 {
				t.Errorf("value at (%d,%d) out of range: %f", x, y, v)
			}
		}
	}

	// mass stays near the original corner
	if out[0][0] < 0.5 {
		t.Errorf("expected high value at origin, got %f", out[0][0])
	}

	if out[3][3] > 0.5 {
		t.Errorf("expected low value at far corner, got %f", out[3][3])
	}
}

func TestResizeMaskUniform(t *testing.T) {

	src := Mask{
		{1, 1, 1},
		{1, 1, 1},
		{1, 1, 1},
	}

	out := ResizeMask(src, 6, 6)

	for y, row := range out {
		for x, v := range row {
			if v != 1 {
				t.Errorf("uniform mask changed at (%d,%d): %f", x, y, v)
			}
		}
	}
}

func TestResizeMaskDegenerate(t *testing.T) {

	if out := ResizeMask(nil, 4, 4); out != nil {
		t.Errorf("expected nil for nil mask, got %v", out)
	}

	if out := ResizeMask(Mask{}, 4, 4); out != nil {
		t.Errorf("expected nil for empty mask, got %v", out)
	}

	src := Mask{{1, 0}}

	if out := ResizeMask(src, 0, 4); out != nil {
		t.Errorf("expected nil for zero width target, got %v", out)
	}

	if out := ResizeMask(src, 4, -1); out != nil {
		t.Errorf("expected nil for negative height target, got %v", out)
	}
}
