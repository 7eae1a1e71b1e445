package tracker

import (
	"sync"

	"github.com/pkg/errors"

	objtrail "github.com/objtrail/go-objtrail"
)

// ByteParams are the ByteTracker settings
type ByteParams struct {
	// FrameRate of the processed sequence in frames per second
	FrameRate int
	// TrackBuffer scales how many frames a lost track is retained for
	// re association before removal
	TrackBuffer int
	// TrackThresh splits detections into high and low confidence groups
	// for the two association passes
	TrackThresh float64
	// HighThresh is the minimum confidence for starting a new track
	HighThresh float64
	// MatchThresh is the IoU distance limit for first pass association
	MatchThresh float64
}

// DefaultByteParams returns the recommended byte tracking settings
func DefaultByteParams() ByteParams {
	return ByteParams{
		FrameRate:   30,
		TrackBuffer: 30,
		TrackThresh: 0.5,
		HighThresh:  0.6,
		MatchThresh: 0.8,
	}
}

// ByteTracker maintains object identities across frames using two pass
// association by bounding box overlap: high confidence detections match
// against the kalman predicted track pool first, low confidence
// detections then rescue tracks left unmatched.  Identities are
// allocated in first seen order, a track not started on the first frame
// is confirmed after matching on two consecutive frames.
//
// Assignments echo the detection key of their source detection, lost
// tracks pending re association are reported with no detection
// confidence and no key
type ByteTracker struct {
	params      ByteParams
	maxTimeLost int

	frameID int
	lastID  int64

	tracked []*byteTrack
	lost    []*byteTrack

	sync.Mutex
}

// NewByteTracker returns a tracker using the given settings.  Zero values
// fall back to their defaults
func NewByteTracker(params ByteParams) *ByteTracker {

	def := DefaultByteParams()

	if params.FrameRate <= 0 {
		params.FrameRate = def.FrameRate
	}

	if params.TrackBuffer <= 0 {
		params.TrackBuffer = def.TrackBuffer
	}

	if params.TrackThresh <= 0 {
		params.TrackThresh = def.TrackThresh
	}

	if params.HighThresh <= 0 {
		params.HighThresh = def.HighThresh
	}

	if params.MatchThresh <= 0 {
		params.MatchThresh = def.MatchThresh
	}

	return &ByteTracker{
		params:      params,
		maxTimeLost: int(float64(params.FrameRate) / 30.0 * float64(params.TrackBuffer)),
	}
}

// Reset drops all tracks and identity state, the next run allocates
// identities from one again
func (bt *ByteTracker) Reset() {
	bt.Lock()
	defer bt.Unlock()

	bt.frameID = 0
	bt.lastID = 0
	bt.tracked = nil
	bt.lost = nil
}

// Update matches the detections of one frame against the maintained
// tracks and returns the resulting assignments.  Confirmed tracks carry
// their matched detection key and confidence, lost tracks follow as
// coasting entries with neither.  Association is by box overlap only,
// the frame content is not used
func (bt *ByteTracker) Update(_ objtrail.Frame, inputs []objtrail.TrackerInput) ([]objtrail.TrackAssignment, error) {
	bt.Lock()
	defer bt.Unlock()

	bt.frameID++

	// split the detections into high and low confidence groups
	var dets, detsLow []*byteTrack

	for _, in := range inputs {

		det := newByteTrack(
			rect{x: in.Box[0], y: in.Box[1], w: in.Box[2], h: in.Box[3]},
			in.Confidence, in.Key, in.Label)

		if in.Confidence >= bt.params.TrackThresh {
			dets = append(dets, det)
		} else {
			detsLow = append(detsLow, det)
		}
	}

	// split the current tracks into confirmed and unconfirmed
	var active, unconfirmed []*byteTrack

	for _, track := range bt.tracked {
		if track.activated {
			active = append(active, track)
		} else {
			unconfirmed = append(unconfirmed, track)
		}
	}

	pool := joinTracks(active, bt.lost)

	for _, track := range pool {
		track.predict()
	}

	// first association, high confidence detections against the pool
	var current, refound, currentLost, currentRemoved []*byteTrack

	matches, unmatchedTracks, unmatchedDets, err := assign(
		iouDistance(pool, dets), len(pool), len(dets), bt.params.MatchThresh)

	if err != nil {
		return nil, errors.Wrap(err, "first association")
	}

	for _, m := range matches {

		track, det := pool[m[0]], dets[m[1]]

		if track.state == stateTracked {
			if err := track.update(det, bt.frameID); err != nil {
				return nil, errors.Wrap(err, "first association")
			}
			current = append(current, track)
		} else {
			if err := track.reActivate(det, bt.frameID); err != nil {
				return nil, errors.Wrap(err, "first association")
			}
			refound = append(refound, track)
		}
	}

	var remainDets []*byteTrack

	for _, di := range unmatchedDets {
		remainDets = append(remainDets, dets[di])
	}

	var remainTracks []*byteTrack

	for _, ti := range unmatchedTracks {
		if pool[ti].state == stateTracked {
			remainTracks = append(remainTracks, pool[ti])
		}
	}

	// second association, low confidence detections rescue the remaining
	// tracks
	matches, unmatchedTracks, _, err = assign(
		iouDistance(remainTracks, detsLow), len(remainTracks), len(detsLow), 0.5)

	if err != nil {
		return nil, errors.Wrap(err, "second association")
	}

	for _, m := range matches {

		track, det := remainTracks[m[0]], detsLow[m[1]]

		if track.state == stateTracked {
			if err := track.update(det, bt.frameID); err != nil {
				return nil, errors.Wrap(err, "second association")
			}
			current = append(current, track)
		} else {
			if err := track.reActivate(det, bt.frameID); err != nil {
				return nil, errors.Wrap(err, "second association")
			}
			refound = append(refound, track)
		}
	}

	for _, ti := range unmatchedTracks {

		track := remainTracks[ti]

		if track.state != stateLost {
			track.markLost()
			currentLost = append(currentLost, track)
		}
	}

	// leftover detections confirm unconfirmed tracks from the previous
	// frame
	matches, unmatchedUnconfirmed, unmatchedDets, err := assign(
		iouDistance(unconfirmed, remainDets), len(unconfirmed), len(remainDets), 0.7)

	if err != nil {
		return nil, errors.Wrap(err, "confirm tracks")
	}

	for _, m := range matches {
		if err := unconfirmed[m[0]].update(remainDets[m[1]], bt.frameID); err != nil {
			return nil, errors.Wrap(err, "confirm tracks")
		}
		current = append(current, unconfirmed[m[0]])
	}

	for _, ti := range unmatchedUnconfirmed {
		track := unconfirmed[ti]
		track.markRemoved()
		currentRemoved = append(currentRemoved, track)
	}

	// remaining high confidence detections start new tracks
	for _, di := range unmatchedDets {

		det := remainDets[di]

		if det.score < bt.params.HighThresh {
			continue
		}

		bt.lastID++
		det.activate(bt.frameID, bt.lastID)
		current = append(current, det)
	}

	// age out lost tracks
	for _, track := range bt.lost {
		if bt.frameID-track.frameID > bt.maxTimeLost {
			track.markRemoved()
			currentRemoved = append(currentRemoved, track)
		}
	}

	bt.tracked = joinTracks(current, refound)
	bt.lost = subTracks(joinTracks(subTracks(bt.lost, bt.tracked), currentLost), currentRemoved)

	bt.tracked, bt.lost = splitDuplicates(bt.tracked, bt.lost)

	out := make([]objtrail.TrackAssignment, 0, len(bt.tracked)+len(bt.lost))

	for _, track := range bt.tracked {

		if !track.activated {
			continue
		}

		conf := track.score

		out = append(out, objtrail.TrackAssignment{
			Identity:            track.id,
			DetectionConfidence: &conf,
			DetectionKey:        track.key,
		})
	}

	for _, track := range bt.lost {
		out = append(out, objtrail.TrackAssignment{
			Identity:     track.id,
			DetectionKey: -1,
		})
	}

	return out, nil
}

// joinTracks combines two track lists skipping duplicate identities
func joinTracks(a, b []*byteTrack) []*byteTrack {

	exists := make(map[int64]bool, len(a))
	var res []*byteTrack

	for _, track := range a {
		exists[track.id] = true
		res = append(res, track)
	}

	for _, track := range b {
		if !exists[track.id] {
			exists[track.id] = true
			res = append(res, track)
		}
	}

	return res
}

// subTracks removes the tracks of b from a, preserving the order of a
func subTracks(a, b []*byteTrack) []*byteTrack {

	drop := make(map[int64]bool, len(b))

	for _, track := range b {
		drop[track.id] = true
	}

	var res []*byteTrack

	for _, track := range a {
		if !drop[track.id] {
			res = append(res, track)
		}
	}

	return res
}

// splitDuplicates resolves tracked and lost tracks that overlap heavily,
// keeping whichever has the longer history
func splitDuplicates(tracked, lost []*byteTrack) ([]*byteTrack, []*byteTrack) {

	dist := iouDistance(tracked, lost)

	dupTracked := make([]bool, len(tracked))
	dupLost := make([]bool, len(lost))

	for i := range dist {
		for j := range dist[i] {

			if dist[i][j] >= 0.15 {
				continue
			}

			ageTracked := tracked[i].frameID - tracked[i].startFrame
			ageLost := lost[j].frameID - lost[j].startFrame

			if ageTracked > ageLost {
				dupLost[j] = true
			} else {
				dupTracked[i] = true
			}
		}
	}

	var outTracked, outLost []*byteTrack

	for i, dup := range dupTracked {
		if !dup {
			outTracked = append(outTracked, tracked[i])
		}
	}

	for j, dup := range dupLost {
		if !dup {
			outLost = append(outLost, lost[j])
		}
	}

	return outTracked, outLost
}

// iouDistance builds the cost matrix of one minus IoU between two track
// lists
func iouDistance(a, b []*byteTrack) [][]float64 {

	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	cost := make([][]float64, len(a))

	for i, ta := range a {
		cost[i] = make([]float64, len(b))

		for j, tb := range b {
			cost[i][j] = 1 - tb.box.iou(ta.box)
		}
	}

	return cost
}

// assign solves the assignment between the rows and columns of the cost
// matrix, pairs costing more than the threshold stay unmatched
func assign(cost [][]float64, rows, cols int, thresh float64) (matches [][2]int,
	unmatchedRows, unmatchedCols []int, err error) {

	if len(cost) == 0 {
		for i := 0; i < rows; i++ {
			unmatchedRows = append(unmatchedRows, i)
		}
		for i := 0; i < cols; i++ {
			unmatchedCols = append(unmatchedCols, i)
		}
		return
	}

	rowSol, colSol, err := solveWithLimit(cost, thresh)

	if err != nil {
		return nil, nil, nil, err
	}

	for i, sol := range rowSol {
		if sol >= 0 {
			matches = append(matches, [2]int{i, sol})
		} else {
			unmatchedRows = append(unmatchedRows, i)
		}
	}

	for i, sol := range colSol {
		if sol < 0 {
			unmatchedCols = append(unmatchedCols, i)
		}
	}

	return
}

// solveWithLimit pads the cost matrix into a square problem where any
// assignment costing more than the limit resolves to padding instead,
// then solves it with the jonker volgenant algorithm
func solveWithLimit(cost [][]float64, limit float64) (rowSol, colSol []int, err error) {

	rows := len(cost)
	cols := len(cost[0])
	n := rows + cols

	padded := make([][]float64, n)

	for i := range padded {
		padded[i] = make([]float64, n)

		for j := range padded[i] {
			padded[i][j] = limit / 2
		}
	}

	for i := rows; i < n; i++ {
		for j := cols; j < n; j++ {
			padded[i][j] = 0
		}
	}

	for i := 0; i < rows; i++ {
		copy(padded[i], cost[i])
	}

	x := make([]int, n)
	y := make([]int, n)

	if err := lapjvInternal(n, padded, x, y); err != nil {
		return nil, nil, errors.Wrap(err, "solve assignment")
	}

	// positions assigned to padding are unmatched
	for i := 0; i < n; i++ {
		if x[i] >= cols {
			x[i] = -1
		}
		if y[i] >= rows {
			y[i] = -1
		}
	}

	return x[:rows], y[:cols], nil
}
