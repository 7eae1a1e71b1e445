// Package tracker associates per frame detections with stable object
// identities using kalman filter based multi object tracking backends
package tracker

import (
	"sync"

	"github.com/LdDl/mot-go/mot"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	objtrail "github.com/objtrail/go-objtrail"
)

// Algorithm selects the matching strategy of the tracking backend
type Algorithm int

const (
	// Centroid matches detections to tracks by euclidean distance
	// between bounding box centers
	Centroid Algorithm = iota
	// IoU matches detections to tracks by bounding box overlap with
	// center distance as fallback
	IoU
)

// DefaultMaxAge is the number of consecutive frames a track survives
// without a matching detection before it is dropped
const DefaultMaxAge = 5

// Params are the BlobTracker settings
type Params struct {
	// Algorithm is the matching strategy
	Algorithm Algorithm
	// MaxAge is the number of consecutive frames a track survives
	// without a matching detection
	MaxAge int
	// MinDistance is the centroid matching threshold in pixels, only
	// used by the Centroid algorithm
	MinDistance float64
	// IoUThreshold is the minimum overlap score for a match, only used
	// by the IoU algorithm
	IoUThreshold float64
	// DT is the time delta between frames fed to the kalman filter
	DT float64
}

// DefaultParams returns the recommended tracker settings
func DefaultParams() Params {
	return Params{
		Algorithm:    Centroid,
		MaxAge:       DefaultMaxAge,
		MinDistance:  30.0,
		IoUThreshold: 0.3,
		DT:           1.0,
	}
}

// BlobTracker maintains object identities across frames by matching each
// frame's detections against kalman filter tracked blobs.  The backend
// keys tracks by UUID, the tracker maps those to small integer identities
// allocated in first seen order.
//
// Assignments echo the detection key of their source detection, coasting
// tracks that matched no detection in the current frame are reported with
// no detection confidence and no key
type BlobTracker struct {
	params Params

	// backend closures, the generic engine types share no interface
	match   func([]*mot.SimpleBlob) error
	objects func() map[uuid.UUID]*mot.SimpleBlob

	ids *identityMap
	sync.Mutex
}

// NewBlobTracker returns a tracker using the given settings.  Zero values
// for MaxAge, MinDistance and DT fall back to their defaults
func NewBlobTracker(params Params) *BlobTracker {

	if params.MaxAge < 1 {
		params.MaxAge = DefaultMaxAge
	}

	if params.MinDistance <= 0 {
		params.MinDistance = 30.0
	}

	if params.DT <= 0 {
		params.DT = 1.0
	}

	t := &BlobTracker{
		params: params,
	}

	t.rebuild()

	return t
}

// rebuild creates a fresh backend engine and identity map
func (t *BlobTracker) rebuild() {

	t.ids = newIdentityMap()

	switch t.params.Algorithm {

	case IoU:
		eng := mot.NewIoUTracker[*mot.SimpleBlob](t.params.MaxAge,
			t.params.IoUThreshold)
		t.match = eng.MatchObjects
		t.objects = func() map[uuid.UUID]*mot.SimpleBlob {
			return eng.Objects
		}

	default:
		eng := mot.NewNewSimpleTracker[*mot.SimpleBlob](t.params.MinDistance,
			t.params.MaxAge)
		t.match = eng.MatchObjects
		t.objects = func() map[uuid.UUID]*mot.SimpleBlob {
			return eng.Objects
		}
	}
}

// Update matches the detections of one frame against the maintained
// tracks and returns the resulting assignments.  Matched detections carry
// their echoed key and confidence, coasting tracks follow with neither.
// Matching is geometric, the frame content is not used
func (t *BlobTracker) Update(_ objtrail.Frame, inputs []objtrail.TrackerInput) ([]objtrail.TrackAssignment, error) {
	t.Lock()
	defer t.Unlock()

	blobs := make([]*mot.SimpleBlob, len(inputs))

	for i, in := range inputs {
		rect := mot.Rectangle{
			X:      in.Box[0],
			Y:      in.Box[1],
			Width:  in.Box[2],
			Height: in.Box[3],
		}
		blobs[i] = mot.NewSimpleBlobWithTime(rect, t.params.DT)
	}

	if err := t.match(blobs); err != nil {
		return nil, errors.Wrap(err, "match detections to tracks")
	}

	out := make([]objtrail.TrackAssignment, 0, len(blobs))

	// matching rewrites each blob's UUID to the track it joined, which
	// correlates every input index with its track
	seen := make(map[uuid.UUID]struct{}, len(blobs))

	for i, blob := range blobs {
		trackID := blob.GetID()
		seen[trackID] = struct{}{}

		conf := inputs[i].Confidence

		out = append(out, objtrail.TrackAssignment{
			Identity:            t.ids.identityOf(trackID),
			DetectionConfidence: &conf,
			DetectionKey:        inputs[i].Key,
		})
	}

	// tracks kept alive by the backend without a detection this frame
	live := t.objects()

	for trackID := range live {
		if _, exists := seen[trackID]; exists {
			continue
		}

		out = append(out, objtrail.TrackAssignment{
			Identity:     t.ids.identityOf(trackID),
			DetectionKey: -1,
		})
	}

	t.ids.prune(live)

	return out, nil
}

// Reset drops all tracks and identity state, the next run allocates
// identities from one again
func (t *BlobTracker) Reset() {
	t.Lock()
	defer t.Unlock()

	t.rebuild()
}
