package render

import (
	"image/color"
	"testing"

	objtrail "github.com/objtrail/go-objtrail"
)

func TestLabel(t *testing.T) {

	det := objtrail.IdentifiedDetection{
		DetectionRecord: objtrail.DetectionRecord{
			ClassName:  "car",
			Confidence: 0.8512,
		},
	}

	if got := Label(det); got != "car: 0.85" {
		t.Errorf("unidentified label = %q, want %q", got, "car: 0.85")
	}

	id := int64(7)
	det.Identity = &id

	if got := Label(det); got != "car 7: 0.85" {
		t.Errorf("identified label = %q, want %q", got, "car 7: 0.85")
	}
}

func TestTrailThickness(t *testing.T) {

	tests := []struct {
		idx  int
		want int
	}{
		{0, 16},
		{1, 11},
		{7, 5},
		{29, 2},
		{63, 2},
	}

	for _, tc := range tests {
		if got := TrailThickness(tc.idx); got != tc.want {
			t.Errorf("TrailThickness(%d) = %d, want %d", tc.idx, got, tc.want)
		}
	}
}

func TestClassColor(t *testing.T) {

	if got := ClassColor(0); got != (color.RGBA{R: 255, G: 56, B: 56, A: 255}) {
		t.Errorf("class 0 color = %v", got)
	}

	if got := ClassColor(2); got != (color.RGBA{R: 255, G: 112, B: 31, A: 255}) {
		t.Errorf("class 2 color = %v", got)
	}

	// palette wraps for class ids beyond its length
	if ClassColor(20) != ClassColor(0) {
		t.Errorf("class 20 should reuse the class 0 color")
	}

	if ClassColor(41) != ClassColor(1) {
		t.Errorf("class 41 should reuse the class 1 color")
	}
}

func TestSatAdd(t *testing.T) {

	tests := []struct {
		p    uint8
		add  float32
		want uint8
	}{
		{10, 20, 30},
		{200, 100, 255},
		{0, 0, 0},
		{255, 1, 255},
	}

	for _, tc := range tests {
		if got := satAdd(tc.p, tc.add); got != tc.want {
			t.Errorf("satAdd(%d, %v) = %d, want %d", tc.p, tc.add, got, tc.want)
		}
	}
}
