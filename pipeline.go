package objtrail

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrOutOfOrderFrame occurs when a frame number does not advance the
// pipeline cursor
var ErrOutOfOrderFrame = errors.New("frame number does not advance the pipeline cursor")

// Frame is a single image processed by the pipeline.  It only exposes
// dimensions, a *gocv.Mat satisfies this interface directly
type Frame interface {
	Cols() int
	Rows() int
}

// Detector locates objects in a frame
type Detector interface {
	Detect(frame Frame) ([]Detection, error)
}

// TrackerInput is a single detection handed to a tracker backend.  Box
// holds the x, y, width, height of the detection in pixels.  Key is the
// index of the detection within the frame, backends that support it echo
// the key back on the resulting assignment
type TrackerInput struct {
	Box        [4]float64
	Confidence float64
	Label      string
	Key        int
}

// Tracker maintains object identities across frames.  Update takes the
// detections of one frame and returns the current track assignments,
// including coasting tracks that matched no detection this frame.  The
// frame is provided for backends extracting appearance features, the
// geometric backends ignore it.  Reset discards all track state
type Tracker interface {
	Update(frame Frame, inputs []TrackerInput) ([]TrackAssignment, error)
	Reset()
}

// Config holds the pipeline settings
type Config struct {
	// Tracker is the backend maintaining identities across frames, leave
	// nil to run detection only
	Tracker Tracker
	// Resolver maps track assignments back onto detections, the zero
	// value selects DefaultResolver
	Resolver Resolver
	// TrailLength is the maximum number of center points kept per
	// identity, values less than one select DefaultTrailLength
	TrailLength int
}

// Pipeline turns frames into per-frame detection results.  Each frame is
// passed to the detector, the surviving detections are handed to the
// tracker, assignments are resolved back onto the detections, and the
// center point of every identified detection is appended to its trail.
//
// Without a tracker the pipeline degrades to detection only, results
// carry no identities and trails are left untouched
type Pipeline struct {
	detector Detector
	tracker  Tracker
	resolver Resolver
	trails   *TrailStore

	// cursor is the number of the last processed frame, frames must
	// arrive with strictly increasing numbers
	cursor int64
	sync.Mutex
}

// NewPipeline returns a pipeline processing frames with the given
// detector
func NewPipeline(det Detector, cfg Config) *Pipeline {

	resolver := cfg.Resolver

	if resolver == (Resolver{}) {
		resolver = DefaultResolver()
	}

	return &Pipeline{
		detector: det,
		tracker:  cfg.Tracker,
		resolver: resolver,
		trails:   NewTrailStore(cfg.TrailLength),
	}
}

// Trails returns the trail store maintained by the pipeline
func (p *Pipeline) Trails() *TrailStore {
	return p.trails
}

// Cursor returns the number of the last processed frame, zero when no
// frame has been processed since the last reset
func (p *Pipeline) Cursor() int64 {
	p.Lock()
	defer p.Unlock()

	return p.cursor
}

// Reset discards the frame cursor, all trail history, and any tracker
// state, returning the pipeline to its initial state
func (p *Pipeline) Reset() {
	p.Lock()
	defer p.Unlock()

	p.cursor = 0
	p.trails.Reset()

	if p.tracker != nil {
		p.tracker.Reset()
	}
}

// Process runs the next frame through the pipeline, numbering it one
// after the last processed frame
func (p *Pipeline) Process(frame Frame) (FrameResult, error) {
	return p.ProcessAt(p.Cursor()+1, frame)
}

// ProcessAt runs a frame with an explicit frame number through the
// pipeline.  Frame numbers must be strictly increasing, gaps are allowed,
// a frame at or before the cursor fails with ErrOutOfOrderFrame
func (p *Pipeline) ProcessAt(frameNo int64, frame Frame) (FrameResult, error) {
	p.Lock()
	defer p.Unlock()

	if frameNo <= p.cursor {
		return FrameResult{}, fmt.Errorf("frame %d after frame %d: %w",
			frameNo, p.cursor, ErrOutOfOrderFrame)
	}

	width := frame.Cols()
	height := frame.Rows()

	dets, err := p.detector.Detect(frame)

	if err != nil {
		return FrameResult{}, fmt.Errorf("detect frame %d: %w", frameNo, err)
	}

	records := BuildRecords(dets, width, height)

	result := FrameResult{
		Frame:  frameNo,
		Width:  width,
		Height: height,
	}

	if p.tracker == nil {
		result.Detections = identityless(records)
		p.cursor = frameNo
		return result, nil
	}

	inputs := make([]TrackerInput, len(records))

	for i, rec := range records {
		inputs[i] = TrackerInput{
			Box: [4]float64{
				float64(rec.Box.XMin),
				float64(rec.Box.YMin),
				float64(rec.Box.Width()),
				float64(rec.Box.Height()),
			},
			Confidence: rec.Confidence,
			Label:      rec.ClassName,
			Key:        i,
		}
	}

	tracks, err := p.tracker.Update(frame, inputs)

	if err != nil {
		// tracker failure degrades the frame to detection only
		log.Printf("tracker unavailable on frame %d, continuing without identities: %v",
			frameNo, err)
		result.Detections = identityless(records)
		p.cursor = frameNo
		return result, nil
	}

	result.Detections = p.resolver.Resolve(records, tracks)

	for _, det := range result.Detections {
		if det.Identity != nil {
			p.trails.Update(*det.Identity, det.Box.Center())
		}
	}

	p.cursor = frameNo

	return result, nil
}

// identityless wraps detection records as results carrying no identity
func identityless(records []DetectionRecord) []IdentifiedDetection {

	out := make([]IdentifiedDetection, len(records))

	for i, rec := range records {
		out[i] = IdentifiedDetection{DetectionRecord: rec}
	}

	return out
}
