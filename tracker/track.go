package tracker

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// trackState is the lifecycle state of a byte track
type trackState int

const (
	// created from a detection but not yet confirmed
	stateNew trackState = iota
	// matched to a detection in the current frame
	stateTracked
	// matched no detection but retained for re association
	stateLost
	// aged out or discarded
	stateRemoved
)

// byteTrack is a single tracked object of the byte tracking backend
type byteTrack struct {
	kf         *kalmanFilter
	mean       stateMean
	covariance stateCov

	// box of the tracked object in pixels, written back from the
	// filtered state after every correction
	box   rect
	state trackState
	// activated becomes true once the track is confirmed by a second
	// consecutive match
	activated bool
	// confidence of the detection that last updated this track
	score float64
	// label of the underlying detection class
	label string
	// key of the detection that updated this track in the current frame
	key int

	id         int64
	frameID    int
	startFrame int
}

// newByteTrack creates an unconfirmed track from one detection
func newByteTrack(box rect, score float64, key int, label string) *byteTrack {
	return &byteTrack{
		kf:         newKalmanFilter(1.0/20, 1.0/160),
		mean:       make(stateMean, 8),
		covariance: stateCov{mat.NewDense(8, 8, nil)},
		box:        box,
		state:      stateNew,
		score:      score,
		key:        key,
		label:      label,
	}
}

// activate initializes the kalman state and assigns the track identity.
// Tracks first seen on the first frame are confirmed immediately
func (t *byteTrack) activate(frameID int, id int64) {

	t.kf.initiate(t.mean, &t.covariance, t.box.xyah())

	t.applyState()

	t.state = stateTracked

	if frameID == 1 {
		t.activated = true
	}

	t.id = id
	t.frameID = frameID
	t.startFrame = frameID
}

// reActivate revives a lost track with a matching detection
func (t *byteTrack) reActivate(det *byteTrack, frameID int) error {

	if err := t.kf.update(t.mean, &t.covariance, det.box.xyah()); err != nil {
		return errors.Wrap(err, "reactivate track")
	}

	t.applyState()

	t.state = stateTracked
	t.activated = true
	t.score = det.score
	t.key = det.key
	t.frameID = frameID

	return nil
}

// predict advances the kalman state one frame.  Tracks without a match in
// the previous frame lose their height velocity first
func (t *byteTrack) predict() {

	if t.state != stateTracked {
		t.mean[7] = 0
	}

	t.kf.predict(t.mean, &t.covariance)
}

// update corrects the kalman state with a matching detection
func (t *byteTrack) update(det *byteTrack, frameID int) error {

	if err := t.kf.update(t.mean, &t.covariance, det.box.xyah()); err != nil {
		return errors.Wrap(err, "update track")
	}

	t.applyState()

	t.state = stateTracked
	t.activated = true
	t.score = det.score
	t.key = det.key
	t.frameID = frameID

	return nil
}

func (t *byteTrack) markLost() {
	t.state = stateLost
}

func (t *byteTrack) markRemoved() {
	t.state = stateRemoved
}

// applyState writes the filtered state back to the track box
func (t *byteTrack) applyState() {
	t.box.w = t.mean[2] * t.mean[3]
	t.box.h = t.mean[3]
	t.box.x = t.mean[0] - t.box.w/2
	t.box.y = t.mean[1] - t.box.h/2
}
