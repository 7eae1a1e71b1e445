package detect

import (
	"sync"

	objtrail "github.com/objtrail/go-objtrail"
)

// Detector is the model runner interface implemented by the detectors in
// this package
type Detector interface {
	objtrail.Detector
	Close() error
}

// Pool is a simple detector pool to share multiple instances of the same
// model across goroutines
type Pool struct {
	// pool of detectors
	detectors chan Detector
	// size of pool
	size  int
	close sync.Once
}

// NewPool creates a new detector pool, calling factory once per instance
func NewPool(size int, factory func() (Detector, error)) (*Pool, error) {

	p := &Pool{
		detectors: make(chan Detector, size),
		size:      size,
	}

	for i := 0; i < size; i++ {
		det, err := factory()

		if err != nil {
			// close any instances that may have been created before
			// receiving the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(det)
	}

	return p, nil
}

// Get a detector from the pool
func (p *Pool) Get() Detector {
	return <-p.detectors
}

// Return a detector to the pool
func (p *Pool) Return(det Detector) {
	select {
	case p.detectors <- det:
	default:
		// pool is full or closed
	}
}

// Detect borrows a detector from the pool for a single frame, making the
// pool usable anywhere a single detector is
func (p *Pool) Detect(frame objtrail.Frame) ([]objtrail.Detection, error) {

	det := p.Get()
	defer p.Return(det)

	return det.Detect(frame)
}

// Close the pool and all detectors in it
func (p *Pool) Close() {
	p.close.Do(func() {
		// close channel
		close(p.detectors)

		// close all detectors
		for next := range p.detectors {
			_ = next.Close()
		}
	})
}
