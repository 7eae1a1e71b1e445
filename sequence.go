package objtrail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// FrameSource yields the frames of a sequence in order.  Next returns
// io.EOF once the sequence is exhausted
type FrameSource interface {
	Next() (Frame, error)
}

// ResultSink receives the result of each processed frame
type ResultSink interface {
	Consume(result FrameResult) error
}

// Timing summarises per frame processing time in milliseconds
type Timing struct {
	Frames int
	Mean   float64
	P50    float64
	P95    float64
}

// SequenceProcessor drains a frame source through a session, fanning
// each frame result out to the given sinks.
//
// A run ends cleanly when the source returns io.EOF, at which point the
// session is stopped and its state cleared.  Source or sink failures and
// context cancellation propagate without stopping the session, trail
// history stays valid so the caller can resume or stop explicitly
type SequenceProcessor struct {
	session *Session

	// timing of processed frames in milliseconds
	timing []float64
	sync.Mutex
}

// NewSequenceProcessor returns a processor driving the given session
func NewSequenceProcessor(s *Session) *SequenceProcessor {
	return &SequenceProcessor{
		session: s,
	}
}

// Run processes frames from src until io.EOF, passing every result to
// each sink in order.  The session is started if needed and stopped on
// clean end of sequence
func (sp *SequenceProcessor) Run(ctx context.Context, src FrameSource,
	sinks ...ResultSink) error {

	sp.session.Start()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := src.Next()

		if errors.Is(err, io.EOF) {
			sp.session.Stop()
			return nil
		}

		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		start := time.Now()

		res, err := sp.session.Process(frame)

		if err != nil {
			return err
		}

		sp.record(time.Since(start))

		for _, sink := range sinks {
			if err := sink.Consume(res); err != nil {
				return fmt.Errorf("write result for frame %d: %w",
					res.Frame, err)
			}
		}
	}
}

// record appends one frame processing duration
func (sp *SequenceProcessor) record(d time.Duration) {
	sp.Lock()
	defer sp.Unlock()

	sp.timing = append(sp.timing, float64(d)/float64(time.Millisecond))
}

// Stats returns processing time statistics over all frames run so far
func (sp *SequenceProcessor) Stats() Timing {
	sp.Lock()
	defer sp.Unlock()

	if len(sp.timing) == 0 {
		return Timing{}
	}

	times := make([]float64, len(sp.timing))
	copy(times, sp.timing)
	sort.Float64s(times)

	return Timing{
		Frames: len(times),
		Mean:   stat.Mean(times, nil),
		P50:    stat.Quantile(0.5, stat.Empirical, times, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, times, nil),
	}
}
