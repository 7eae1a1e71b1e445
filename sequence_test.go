package objtrail

import (
	"context"
	"errors"
	"io"
	"testing"
)

// sliceSource serves frames from a slice, optionally failing at a given
// index
type sliceSource struct {
	frames []Frame
	idx    int
	failAt int
	err    error
}

func (s *sliceSource) Next() (Frame, error) {

	if s.err != nil && s.idx == s.failAt {
		return nil, s.err
	}

	if s.idx >= len(s.frames) {
		return nil, io.EOF
	}

	frame := s.frames[s.idx]
	s.idx++

	return frame, nil
}

// collectSink accumulates results, optionally failing on a given frame
// number
type collectSink struct {
	results []FrameResult
	failOn  int64
	err     error
}

func (c *collectSink) Consume(res FrameResult) error {

	if c.err != nil && res.Frame == c.failOn {
		return c.err
	}

	c.results = append(c.results, res)

	return nil
}

// newTestSequence wires a scripted detector and tracker into a sequence
// processor over n frames of the same drifting detection
func newTestSequence(n int) (*SequenceProcessor, *Session, *sliceSource) {

	detFrames := make([][]Detection, n)
	srcFrames := make([]Frame, n)

	for i := 0; i < n; i++ {
		x := float64(i * 10)
		detFrames[i] = []Detection{
			{ClassName: "car", Confidence: 0.9,
				X0: x, Y0: 10, X1: x + 40, Y1: 50},
		}
		srcFrames[i] = testFrame{cols: 640, rows: 480}
	}

	det := &scriptDetector{frames: detFrames}

	p := NewPipeline(det, Config{Tracker: echoTracker{identity: 7}})
	s := NewSession(p)

	return NewSequenceProcessor(s), s, &sliceSource{frames: srcFrames}
}

func TestSequenceRun(t *testing.T) {

	sp, s, src := newTestSequence(3)

	sink := &collectSink{}

	if err := sp.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(sink.results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(sink.results))
	}

	for i, res := range sink.results {
		if res.Frame != int64(i+1) {
			t.Errorf("result %d: expected frame %d, got %d", i, i+1, res.Frame)
		}
	}

	// clean end of sequence stops the session and clears state
	if s.Active() {
		t.Errorf("expected session stopped after clean end")
	}

	if points := s.Pipeline().Trails().TrailOf(7); points != nil {
		t.Errorf("expected cleared trails after clean end, got %v", points)
	}

	if got := sp.Stats().Frames; got != 3 {
		t.Errorf("expected 3 timed frames, got %d", got)
	}
}

func TestSequenceSourceFailure(t *testing.T) {

	sp, s, src := newTestSequence(3)

	src.failAt = 1
	src.err = errors.New("decoder failed")

	sink := &collectSink{}

	err := sp.Run(context.Background(), src, sink)

	if err == nil {
		t.Fatalf("expected source failure to propagate")
	}

	if len(sink.results) != 1 {
		t.Fatalf("expected 1 result before failure, got %d", len(sink.results))
	}

	// the session stays active with trail history intact
	if !s.Active() {
		t.Errorf("expected session still active after failure")
	}

	points := s.Pipeline().Trails().TrailOf(7)

	if len(points) != 1 || points[0] != (Point{20, 30}) {
		t.Fatalf("expected trail [(20,30)] preserved, got %v", points)
	}

	// the run resumes where it left off
	src.err = nil

	if err := sp.Run(context.Background(), src, sink); err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}

	if len(sink.results) != 3 {
		t.Fatalf("expected 3 results after resume, got %d", len(sink.results))
	}

	if sink.results[1].Frame != 2 || sink.results[2].Frame != 3 {
		t.Errorf("expected resumed frames 2 and 3, got %d and %d",
			sink.results[1].Frame, sink.results[2].Frame)
	}

	if points := s.Pipeline().Trails().TrailOf(7); points != nil {
		t.Errorf("expected cleared trails after clean end, got %v", points)
	}
}

func TestSequenceSinkFailure(t *testing.T) {

	sp, s, src := newTestSequence(3)

	sink := &collectSink{failOn: 2, err: errors.New("disk full")}

	err := sp.Run(context.Background(), src, sink)

	if err == nil {
		t.Fatalf("expected sink failure to propagate")
	}

	if !s.Active() {
		t.Errorf("expected session still active after sink failure")
	}

	// the failed frame was processed, its trail point is retained
	points := s.Pipeline().Trails().TrailOf(7)

	if len(points) != 2 {
		t.Errorf("expected 2 trail points, got %v", points)
	}
}

func TestSequenceContextCancel(t *testing.T) {

	sp, _, src := newTestSequence(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &collectSink{}

	if err := sp.Run(ctx, src, sink); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if len(sink.results) != 0 {
		t.Errorf("expected no results after immediate cancel, got %d",
			len(sink.results))
	}
}

func TestSequenceStats(t *testing.T) {

	sp, _, src := newTestSequence(5)

	if got := sp.Stats(); got.Frames != 0 {
		t.Fatalf("expected empty stats before run, got %+v", got)
	}

	if err := sp.Run(context.Background(), src, &collectSink{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	stats := sp.Stats()

	if stats.Frames != 5 {
		t.Errorf("expected 5 timed frames, got %d", stats.Frames)
	}

	if stats.Mean < 0 || stats.P50 < 0 || stats.P95 < stats.P50 {
		t.Errorf("inconsistent timing stats: %+v", stats)
	}
}
