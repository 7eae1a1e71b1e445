package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	objtrail "github.com/objtrail/go-objtrail"
)

// Recorder is a result sink accumulating the detection list of every
// processed frame for saving as a single JSON document once a sequence
// completes.  The document is one array holding one entry per frame
type Recorder struct {
	frames [][]objtrail.IdentifiedDetection
	sync.Mutex
}

// NewRecorder returns an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{
		frames: make([][]objtrail.IdentifiedDetection, 0),
	}
}

// Consume appends the detections of one frame
func (r *Recorder) Consume(res objtrail.FrameResult) error {
	r.Lock()
	defer r.Unlock()

	dets := res.Detections
	if dets == nil {
		// frames without detections serialize as an empty array
		dets = []objtrail.IdentifiedDetection{}
	}

	r.frames = append(r.frames, dets)
	return nil
}

// Len returns the number of recorded frames
func (r *Recorder) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.frames)
}

// JSON renders all recorded frames as one indented JSON array
func (r *Recorder) JSON() ([]byte, error) {
	r.Lock()
	defer r.Unlock()

	data, err := json.MarshalIndent(r.frames, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}

	return data, nil
}

// SaveJSON writes all recorded frames to the named file
func (r *Recorder) SaveJSON(path string) error {

	data, err := r.JSON()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	return nil
}

// Reset drops all recorded frames
func (r *Recorder) Reset() {
	r.Lock()
	defer r.Unlock()
	r.frames = make([][]objtrail.IdentifiedDetection, 0)
}
