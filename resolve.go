package objtrail

import "gonum.org/v1/gonum/floats/scalar"

// Resolver maps tracker assignments back onto the detection records that
// produced them.
//
// Assignments carrying a detection key are bound directly by input index.
// Assignments without a key fall back to confidence proximity, where each
// record takes the first assignment whose detection confidence is within
// tolerance of its own.  Confidence proximity is a heuristic, tracker
// backends that echo detection keys should be preferred as identical
// confidences are resolved by detection order only
type Resolver struct {
	// AbsTol is the absolute tolerance used for confidence proximity
	AbsTol float64
	// RelTol is the relative tolerance used for confidence proximity
	RelTol float64
}

// DefaultResolver returns a Resolver with the standard proximity tolerances
func DefaultResolver() Resolver {
	return Resolver{
		AbsTol: 1e-8,
		RelTol: 1e-5,
	}
}

// close reports whether two confidences are equal within tolerance
func (r Resolver) close(a, b float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, r.AbsTol, r.RelTol)
}

// Resolve assigns tracker identities to detection records.  Records that
// no assignment accounts for keep a nil identity.  Assignments remain
// candidates for every record, a track matched by one record is not
// removed from the pool for the next
func (r Resolver) Resolve(records []DetectionRecord,
	tracks []TrackAssignment) []IdentifiedDetection {

	out := make([]IdentifiedDetection, len(records))

	for i, rec := range records {
		out[i] = IdentifiedDetection{DetectionRecord: rec}
	}

	// bind assignments that name their source detection by input index
	for _, trk := range tracks {
		if trk.DetectionKey < 0 || trk.DetectionKey >= len(records) {
			continue
		}

		if out[trk.DetectionKey].Identity == nil {
			id := trk.Identity
			out[trk.DetectionKey].Identity = &id
		}
	}

	// confidence proximity for records still unresolved
	for i := range out {

		if out[i].Identity != nil {
			continue
		}

		for _, trk := range tracks {
			if trk.DetectionConfidence == nil {
				continue
			}

			if r.close(out[i].Confidence, *trk.DetectionConfidence) {
				id := trk.Identity
				out[i].Identity = &id
				break
			}
		}
	}

	return out
}
