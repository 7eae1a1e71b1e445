package objtrail

import (
	"testing"
)

func TestBuildRecords(t *testing.T) {

	dets := []Detection{
		{ClassID: 2, ClassName: "car", Confidence: 0.91,
			X0: 10.9, Y0: 10.4, X1: 50.7, Y1: 50.2},
		{ClassID: 0, ClassName: "person", Confidence: 0.55,
			X0: 100, Y0: 40, X1: 140, Y1: 180},
	}

	records := BuildRecords(dets, 640, 480)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// float coordinates truncate, not round
	expectBox := BoundingBox{XMin: 10, YMin: 10, XMax: 50, YMax: 50}

	if records[0].Box != expectBox {
		t.Errorf("expected box %+v, got %+v", expectBox, records[0].Box)
	}

	if records[0].ClassID != 2 || records[0].ClassName != "car" ||
		records[0].Confidence != 0.91 {
		t.Errorf("record fields not carried over, got %+v", records[0])
	}

	// input order is preserved
	if records[1].ClassName != "person" {
		t.Errorf("expected person second, got %q", records[1].ClassName)
	}
}

func TestBuildRecordsDropsMalformed(t *testing.T) {

	nan := func() float64 {
		var z float64
		return z / z
	}()

	dets := []Detection{
		{ClassName: "ok1", Confidence: 0.5, X0: 0, Y0: 0, X1: 10, Y1: 10},
		{ClassName: "nanconf", Confidence: nan, X0: 0, Y0: 0, X1: 10, Y1: 10},
		{ClassName: "overconf", Confidence: 1.5, X0: 0, Y0: 0, X1: 10, Y1: 10},
		{ClassName: "negconf", Confidence: -0.1, X0: 0, Y0: 0, X1: 10, Y1: 10},
		{ClassName: "nancoord", Confidence: 0.5, X0: nan, Y0: 0, X1: 10, Y1: 10},
		{ClassName: "inverted", Confidence: 0.5, X0: 50, Y0: 0, X1: 10, Y1: 10},
		{ClassName: "ok2", Confidence: 0.9, X0: 5, Y0: 5, X1: 25, Y1: 25},
	}

	records := BuildRecords(dets, 640, 480)

	if len(records) != 2 {
		t.Fatalf("expected 2 surviving records, got %d", len(records))
	}

	if records[0].ClassName != "ok1" || records[1].ClassName != "ok2" {
		t.Errorf("wrong detections survived: %q, %q",
			records[0].ClassName, records[1].ClassName)
	}
}

func TestBoundingBoxCenter(t *testing.T) {

	tests := []struct {
		box      BoundingBox
		expected Point
	}{
		{BoundingBox{10, 10, 50, 50}, Point{30, 30}},
		{BoundingBox{20, 20, 60, 60}, Point{40, 40}},
		// odd extents truncate to integer pixels
		{BoundingBox{0, 0, 5, 5}, Point{2, 2}},
		{BoundingBox{7, 3, 7, 3}, Point{7, 3}},
	}

	for _, tc := range tests {
		if got := tc.box.Center(); got != tc.expected {
			t.Errorf("center of %+v: expected %+v, got %+v",
				tc.box, tc.expected, got)
		}
	}
}

func TestBuildRecordsMask(t *testing.T) {

	// mask already at frame resolution is attached as is
	atRes := Mask{
		{1, 1, 0, 0},
		{1, 1, 0, 0},
	}

	dets := []Detection{
		{ClassName: "cat", Confidence: 0.8, X0: 0, Y0: 0, X1: 2, Y1: 1,
			Mask: atRes},
	}

	records := BuildRecords(dets, 4, 2)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	if w, h := records[0].Mask.Dims(); w != 4 || h != 2 {
		t.Errorf("expected mask dims 4x2, got %dx%d", w, h)
	}

	// mask at model resolution is rescaled to frame resolution
	modelRes := Mask{
		{1, 0},
		{0, 0},
	}

	dets = []Detection{
		{ClassName: "cat", Confidence: 0.8, X0: 0, Y0: 0, X1: 4, Y1: 4,
			Mask: modelRes},
	}

	records = BuildRecords(dets, 8, 8)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	if w, h := records[0].Mask.Dims(); w != 8 || h != 8 {
		t.Errorf("expected mask rescaled to 8x8, got %dx%d", w, h)
	}
}

func TestIdentifiedDetection(t *testing.T) {

	det := IdentifiedDetection{
		DetectionRecord: DetectionRecord{ClassName: "car", Confidence: 0.9},
	}

	if det.Identified() {
		t.Errorf("expected detection without identity")
	}

	id := int64(7)
	det.Identity = &id

	if !det.Identified() {
		t.Errorf("expected detection with identity")
	}
}
