package objtrail

import "sync"

// DefaultTrailLength is the number of most recent center points retained
// per identity when no explicit length is configured
const DefaultTrailLength = 30

// Point represents the x,y coordinates of the center of a detection
// bounding box
type Point struct {
	X, Y int
}

// trail is the point history recorded for a single identity
type trail struct {
	points []Point
}

// TrailStore keeps a bounded history of bounding box center points per
// tracked identity, used for drawing motion trails
type TrailStore struct {
	// size is the maximum number of most recent points to keep per identity
	size int
	// history of center points keyed by identity
	history map[int64]*trail
	sync.Mutex
}

// NewTrailStore returns a new trail history instance.  Size is the maximum
// length of the trail maintained per identity, values less than one fall
// back to DefaultTrailLength
func NewTrailStore(size int) *TrailStore {

	if size < 1 {
		size = DefaultTrailLength
	}

	return &TrailStore{
		size:    size,
		history: make(map[int64]*trail),
	}
}

// Capacity returns the maximum trail length maintained per identity
func (t *TrailStore) Capacity() int {
	return t.size
}

// Reset clears all history
func (t *TrailStore) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int64]*trail)
}

// Update appends a center point to the history of the given identity,
// creating the history on first use.  When the history exceeds the
// configured size the oldest point is dropped
func (t *TrailStore) Update(id int64, p Point) {
	t.Lock()
	defer t.Unlock()

	// init history if none exists yet for identity
	if _, exists := t.history[id]; !exists {
		t.history[id] = &trail{}
	}

	tr := t.history[id]
	tr.points = append(tr.points, p)

	// check if history is exceeded and drop oldest point
	if len(tr.points) > t.size {
		tr.points = tr.points[1:]
	}
}

// TrailOf returns a copy of the point history for a specific identity,
// ordered oldest first.  Returns nil when the identity has no history
func (t *TrailStore) TrailOf(id int64) []Point {
	t.Lock()
	defer t.Unlock()

	tr, exists := t.history[id]

	if !exists {
		return nil
	}

	points := make([]Point, len(tr.points))
	copy(points, tr.points)

	return points
}
