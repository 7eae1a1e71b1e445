package objtrail

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotStarted occurs when frames are offered to a session that
// has not been started or has been stopped
var ErrSessionNotStarted = errors.New("session not started")

// Session binds a pipeline to an explicit start/stop lifecycle.  Each
// start opens a new run under a fresh run ID, stop clears the trail
// history and tracker state so the next run begins clean.  Both calls
// are idempotent
type Session struct {
	id       uuid.UUID
	pipeline *Pipeline
	started  bool
	sync.Mutex
}

// NewSession returns a stopped session around the given pipeline
func NewSession(p *Pipeline) *Session {
	return &Session{
		pipeline: p,
	}
}

// ID returns the run ID of the current or most recent run, uuid.Nil
// before the first start
func (s *Session) ID() uuid.UUID {
	s.Lock()
	defer s.Unlock()

	return s.id
}

// Active reports whether the session has been started and not yet
// stopped
func (s *Session) Active() bool {
	s.Lock()
	defer s.Unlock()

	return s.started
}

// Pipeline returns the pipeline the session runs
func (s *Session) Pipeline() *Pipeline {
	return s.pipeline
}

// Start opens a new run and returns its run ID.  Starting an active
// session is a no-op returning the current run ID
func (s *Session) Start() uuid.UUID {
	s.Lock()
	defer s.Unlock()

	if s.started {
		return s.id
	}

	s.id = uuid.New()
	s.started = true

	return s.id
}

// Stop ends the current run and resets the pipeline, discarding trail
// history, tracker state, and the frame cursor.  Stopping an inactive
// session is a no-op
func (s *Session) Stop() {
	s.Lock()
	defer s.Unlock()

	if !s.started {
		return
	}

	s.started = false
	s.pipeline.Reset()
}

// Process runs the next frame of the current run, failing with
// ErrSessionNotStarted when the session is inactive
func (s *Session) Process(frame Frame) (FrameResult, error) {

	if !s.Active() {
		return FrameResult{}, ErrSessionNotStarted
	}

	return s.pipeline.Process(frame)
}

// ProcessAt runs a frame with an explicit frame number, failing with
// ErrSessionNotStarted when the session is inactive
func (s *Session) ProcessAt(frameNo int64, frame Frame) (FrameResult, error) {

	if !s.Active() {
		return FrameResult{}, ErrSessionNotStarted
	}

	return s.pipeline.ProcessAt(frameNo, frame)
}
