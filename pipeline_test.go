package objtrail

import (
	"errors"
	"testing"
)

// testFrame is a frame stub carrying only dimensions
type testFrame struct {
	cols, rows int
}

func (f testFrame) Cols() int { return f.cols }

func (f testFrame) Rows() int { return f.rows }

// scriptDetector replays a fixed list of per frame detections
type scriptDetector struct {
	frames [][]Detection
	call   int
	err    error
}

func (d *scriptDetector) Detect(frame Frame) ([]Detection, error) {

	if d.err != nil {
		return nil, d.err
	}

	if d.call >= len(d.frames) {
		return nil, nil
	}

	dets := d.frames[d.call]
	d.call++

	return dets, nil
}

// scriptTracker replays fixed assignments and records the inputs it was
// given
type scriptTracker struct {
	assigns [][]TrackAssignment
	call    int
	inputs  [][]TrackerInput
	err     error
	resets  int
}

func (tk *scriptTracker) Update(_ Frame, inputs []TrackerInput) ([]TrackAssignment, error) {

	tk.inputs = append(tk.inputs, inputs)

	if tk.err != nil {
		return nil, tk.err
	}

	if tk.call >= len(tk.assigns) {
		return nil, nil
	}

	out := tk.assigns[tk.call]
	tk.call++

	return out, nil
}

func (tk *scriptTracker) Reset() {
	tk.resets++
}

// echoTracker assigns every detection a fixed identity, echoing the
// detection key
type echoTracker struct {
	identity int64
}

func (tk echoTracker) Update(_ Frame, inputs []TrackerInput) ([]TrackAssignment, error) {

	out := make([]TrackAssignment, len(inputs))

	for i, in := range inputs {
		out[i] = TrackAssignment{
			Identity:            tk.identity,
			DetectionConfidence: confPtr(in.Confidence),
			DetectionKey:        in.Key,
		}
	}

	return out, nil
}

func (tk echoTracker) Reset() {}

func TestPipelineProcessSequence(t *testing.T) {

	det := &scriptDetector{
		frames: [][]Detection{
			{{ClassID: 2, ClassName: "car", Confidence: 0.91,
				X0: 10, Y0: 10, X1: 50, Y1: 50}},
			{{ClassID: 2, ClassName: "car", Confidence: 0.93,
				X0: 20, Y0: 20, X1: 60, Y1: 60}},
		},
	}

	trk := &scriptTracker{
		assigns: [][]TrackAssignment{
			{{Identity: 7, DetectionConfidence: confPtr(0.91), DetectionKey: -1}},
			{{Identity: 7, DetectionConfidence: confPtr(0.93), DetectionKey: -1}},
		},
	}

	p := NewPipeline(det, Config{Tracker: trk})

	frame := testFrame{cols: 640, rows: 480}

	res, err := p.Process(frame)

	if err != nil {
		t.Fatalf("frame 1 failed: %v", err)
	}

	if res.Frame != 1 || res.Width != 640 || res.Height != 480 {
		t.Errorf("unexpected frame result header: %+v", res)
	}

	if len(res.Detections) != 1 || !res.Detections[0].Identified() ||
		*res.Detections[0].Identity != 7 {
		t.Fatalf("expected identity 7 on frame 1, got %+v", res.Detections)
	}

	points := p.Trails().TrailOf(7)

	if len(points) != 1 || points[0] != (Point{30, 30}) {
		t.Fatalf("expected trail [(30,30)] after frame 1, got %v", points)
	}

	res, err = p.Process(frame)

	if err != nil {
		t.Fatalf("frame 2 failed: %v", err)
	}

	if res.Frame != 2 {
		t.Errorf("expected frame number 2, got %d", res.Frame)
	}

	points = p.Trails().TrailOf(7)

	if len(points) != 2 || points[0] != (Point{30, 30}) ||
		points[1] != (Point{40, 40}) {
		t.Fatalf("expected trail [(30,30) (40,40)] after frame 2, got %v",
			points)
	}

	// tracker received box as x, y, width, height with the detection key
	if len(trk.inputs) != 2 {
		t.Fatalf("expected 2 tracker updates, got %d", len(trk.inputs))
	}

	in := trk.inputs[0][0]

	if in.Box != [4]float64{10, 10, 40, 40} || in.Key != 0 ||
		in.Label != "car" || in.Confidence != 0.91 {
		t.Errorf("unexpected tracker input: %+v", in)
	}
}

func TestPipelineNoTracker(t *testing.T) {

	det := &scriptDetector{
		frames: [][]Detection{
			{{ClassName: "car", Confidence: 0.91, X0: 10, Y0: 10, X1: 50, Y1: 50}},
		},
	}

	p := NewPipeline(det, Config{})

	res, err := p.Process(testFrame{cols: 640, rows: 480})

	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if len(res.Detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(res.Detections))
	}

	if res.Detections[0].Identified() {
		t.Errorf("expected identity-less detection, got identity %d",
			*res.Detections[0].Identity)
	}

	// trails are never touched without a tracker
	if points := p.Trails().TrailOf(7); points != nil {
		t.Errorf("expected untouched trails, got %v", points)
	}
}

func TestPipelineTrackerError(t *testing.T) {

	det := &scriptDetector{
		frames: [][]Detection{
			{{ClassName: "car", Confidence: 0.91, X0: 10, Y0: 10, X1: 50, Y1: 50}},
		},
	}

	trk := &scriptTracker{err: errors.New("tracker down")}

	p := NewPipeline(det, Config{Tracker: trk})

	res, err := p.Process(testFrame{cols: 640, rows: 480})

	// tracker failure degrades to detection only, it is not a frame error
	if err != nil {
		t.Fatalf("expected degraded result, got error: %v", err)
	}

	if len(res.Detections) != 1 || res.Detections[0].Identified() {
		t.Errorf("expected identity-less detections, got %+v", res.Detections)
	}

	if points := p.Trails().TrailOf(7); points != nil {
		t.Errorf("expected untouched trails, got %v", points)
	}

	if p.Cursor() != 1 {
		t.Errorf("expected cursor to advance to 1, got %d", p.Cursor())
	}
}

func TestPipelineDetectorError(t *testing.T) {

	det := &scriptDetector{err: errors.New("model failed")}

	p := NewPipeline(det, Config{})

	_, err := p.Process(testFrame{cols: 640, rows: 480})

	if err == nil {
		t.Fatalf("expected detector error to propagate")
	}

	// failed frame does not advance the cursor
	if p.Cursor() != 0 {
		t.Errorf("expected cursor 0 after failed frame, got %d", p.Cursor())
	}

	det.err = nil

	if _, err := p.Process(testFrame{cols: 640, rows: 480}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}

	if p.Cursor() != 1 {
		t.Errorf("expected cursor 1 after retry, got %d", p.Cursor())
	}
}

func TestPipelineOutOfOrder(t *testing.T) {

	det := &scriptDetector{}

	p := NewPipeline(det, Config{})

	frame := testFrame{cols: 640, rows: 480}

	if _, err := p.ProcessAt(5, frame); err != nil {
		t.Fatalf("frame 5 failed: %v", err)
	}

	// same frame number again
	if _, err := p.ProcessAt(5, frame); !errors.Is(err, ErrOutOfOrderFrame) {
		t.Errorf("expected ErrOutOfOrderFrame for repeat, got %v", err)
	}

	// going backwards
	if _, err := p.ProcessAt(3, frame); !errors.Is(err, ErrOutOfOrderFrame) {
		t.Errorf("expected ErrOutOfOrderFrame going backwards, got %v", err)
	}

	// rejected frames do not move the cursor
	if p.Cursor() != 5 {
		t.Errorf("expected cursor 5, got %d", p.Cursor())
	}

	// gaps are allowed
	if _, err := p.ProcessAt(10, frame); err != nil {
		t.Errorf("frame 10 after gap failed: %v", err)
	}

	// Process continues after the explicit cursor
	res, err := p.Process(frame)

	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if res.Frame != 11 {
		t.Errorf("expected frame 11, got %d", res.Frame)
	}
}

func TestPipelineTrailEviction(t *testing.T) {

	// 31 frames of the same identity drifting right
	frames := make([][]Detection, 31)

	for i := range frames {
		x := float64(i * 10)
		frames[i] = []Detection{
			{ClassName: "car", Confidence: 0.9,
				X0: x, Y0: 10, X1: x + 40, Y1: 50},
		}
	}

	det := &scriptDetector{frames: frames}

	p := NewPipeline(det, Config{Tracker: echoTracker{identity: 7}})

	frame := testFrame{cols: 640, rows: 480}

	for i := 0; i < 31; i++ {
		if _, err := p.Process(frame); err != nil {
			t.Fatalf("frame %d failed: %v", i+1, err)
		}
	}

	points := p.Trails().TrailOf(7)

	if len(points) != 30 {
		t.Fatalf("expected trail capped at 30 points, got %d", len(points))
	}

	// the first frame's center (20,30) was evicted
	if points[0] != (Point{30, 30}) {
		t.Errorf("expected oldest surviving center (30,30), got %v", points[0])
	}

	if points[29] != (Point{320, 30}) {
		t.Errorf("expected newest center (320,30), got %v", points[29])
	}
}

func TestPipelineReset(t *testing.T) {

	det := &scriptDetector{
		frames: [][]Detection{
			{{ClassName: "car", Confidence: 0.9, X0: 10, Y0: 10, X1: 50, Y1: 50}},
		},
	}

	trk := &scriptTracker{
		assigns: [][]TrackAssignment{
			{{Identity: 7, DetectionConfidence: confPtr(0.9), DetectionKey: 0}},
		},
	}

	p := NewPipeline(det, Config{Tracker: trk})

	if _, err := p.Process(testFrame{cols: 640, rows: 480}); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	p.Reset()

	if p.Cursor() != 0 {
		t.Errorf("expected cursor 0 after reset, got %d", p.Cursor())
	}

	if points := p.Trails().TrailOf(7); points != nil {
		t.Errorf("expected cleared trails after reset, got %v", points)
	}

	if trk.resets != 1 {
		t.Errorf("expected 1 tracker reset, got %d", trk.resets)
	}
}
