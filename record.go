package objtrail

import (
	"log"
	"math"
)

// BoundingBox is the axis aligned location of a detected object in integer
// pixel coordinates of the source frame.
type BoundingBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Center returns the midpoint of the bounding box, truncated to integer
// pixel coordinates
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.XMin + b.XMax) / 2,
		Y: (b.YMin + b.YMax) / 2,
	}
}

// Width returns the bounding box width in pixels
func (b BoundingBox) Width() int {
	return b.XMax - b.XMin
}

// Height returns the bounding box height in pixels
func (b BoundingBox) Height() int {
	return b.YMax - b.YMin
}

// Mask is a per-instance segmentation mask in row major order with values
// in the range [0,1].  A detector produces masks binary at model resolution,
// after rescaling to frame resolution interpolated edge pixels carry
// fractional values.
type Mask [][]float32

// Dims returns the mask width and height.  A nil mask has zero dimensions.
func (m Mask) Dims() (width, height int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m[0]), len(m)
}

// Polygon is a segment outline as a list of (x, y) vertices normalized to
// the range [0,1] in both axes.
type Polygon [][2]float32

// Detection is a single raw detection as produced by a Detector, before
// normalization into a DetectionRecord.  Box coordinates are the floating
// point model output.  Mask may be at model resolution, it is rescaled to
// frame resolution during record building.
type Detection struct {
	ClassID    int
	ClassName  string
	Confidence float64
	X0, Y0     float64
	X1, Y1     float64
	Mask       Mask
	Segment    Polygon
}

// DetectionRecord is the normalized representation of one detection within
// one frame.  Records are immutable once built and owned by the frame that
// produced them, cross frame identity exists only through the resolver.
type DetectionRecord struct {
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
	Mask       Mask        `json:"mask,omitempty"`
	Segment    Polygon     `json:"segments,omitempty"`
}

// TrackAssignment is one active track reported by the Tracker for the
// current frame.
type TrackAssignment struct {
	// Identity is the stable label the tracker assigned to the underlying
	// object
	Identity int64
	// DetectionConfidence is the confidence of the detection that updated
	// this track in the current frame, or nil for a coasting track that
	// received no update
	DetectionConfidence *float64
	// DetectionKey echoes the caller supplied key of the detection that
	// updated this track, or -1 when the tracker cannot correlate keys
	DetectionKey int
}

// IdentifiedDetection is a DetectionRecord with the identity resolved for
// this frame attached.  Identity is nil when no track could be associated
// (new, lost or low confidence detection).
type IdentifiedDetection struct {
	DetectionRecord
	Identity *int64 `json:"object_id,omitempty"`
}

// Identified reports whether an identity was resolved for this detection
func (d IdentifiedDetection) Identified() bool {
	return d.Identity != nil
}

// FrameResult is the complete per frame output consumed by rendering and
// serialization.
type FrameResult struct {
	// Frame is the pipeline's monotonic sequence cursor value for this frame
	Frame int64 `json:"frame"`
	// Width and Height are the source frame dimensions
	Width  int `json:"width"`
	Height int `json:"height"`
	// Detections in the detector's original order
	Detections []IdentifiedDetection `json:"detections"`
}

// BuildRecords converts raw detector output into the normalized record list
// for one frame of the given dimensions.  Input order is preserved as the
// record index is used for detection to track correlation.  Floating point
// box coordinates truncate to integer pixels.  Masks not already at frame
// resolution are rescaled.  Malformed detections are dropped and processing
// of the remaining detections continues.
func BuildRecords(dets []Detection, width, height int) []DetectionRecord {

	records := make([]DetectionRecord, 0, len(dets))

	for i, det := range dets {

		if !validDetection(det) {
			log.Printf("objtrail: dropping malformed detection %d (class=%q conf=%v)",
				i, det.ClassName, det.Confidence)
			continue
		}

		rec := DetectionRecord{
			ClassID:    det.ClassID,
			ClassName:  det.ClassName,
			Confidence: det.Confidence,
			Box: BoundingBox{
				XMin: int(det.X0),
				YMin: int(det.Y0),
				XMax: int(det.X1),
				YMax: int(det.Y1),
			},
			Segment: det.Segment,
		}

		if rec.Box.XMin > rec.Box.XMax || rec.Box.YMin > rec.Box.YMax {
			log.Printf("objtrail: dropping detection %d with inverted box", i)
			continue
		}

		if det.Mask != nil {
			mw, mh := det.Mask.Dims()

			if mw == width && mh == height {
				rec.Mask = det.Mask
			} else {
				rec.Mask = ResizeMask(det.Mask, width, height)
			}
		}

		records = append(records, rec)
	}

	return records
}

// validDetection checks the raw detection carries the required fields
func validDetection(det Detection) bool {

	if math.IsNaN(det.Confidence) || math.IsInf(det.Confidence, 0) {
		return false
	}

	if det.Confidence < 0 || det.Confidence > 1 {
		return false
	}

	for _, v := range []float64{det.X0, det.Y0, det.X1, det.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
