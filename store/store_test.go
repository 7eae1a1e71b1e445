package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	objtrail "github.com/objtrail/go-objtrail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err, "failed to open sqlite store")

	t.Cleanup(func() { s.Close() })
	return s
}

func idPtr(v int64) *int64 {
	return &v
}

func TestSaveRunRoundTrip(t *testing.T) {

	s := setupTestStore(t)

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	run := Run{ID: "run-1", Source: "traffic.mp4", StartedAt: started}

	require.NoError(t, s.SaveRun(run))

	got, err := s.Run("run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "traffic.mp4", got.Source)
	assert.Equal(t, started.Unix(), got.StartedAt.Unix())

	// saving again with a new source updates the run in place
	run.Source = "traffic2.mp4"
	require.NoError(t, s.SaveRun(run))

	got, err = s.Run("run-1")
	require.NoError(t, err)
	assert.Equal(t, "traffic2.mp4", got.Source)
}

func TestRunNotFound(t *testing.T) {

	s := setupTestStore(t)

	_, err := s.Run("missing")
	assert.Error(t, err)
}

func TestSaveFrameRoundTrip(t *testing.T) {

	s := setupTestStore(t)

	require.NoError(t, s.SaveRun(Run{ID: "run-1", StartedAt: time.Now()}))

	dets := []objtrail.IdentifiedDetection{
		{
			DetectionRecord: objtrail.DetectionRecord{
				ClassID:    2,
				ClassName:  "car",
				Confidence: 0.91,
				Box:        objtrail.BoundingBox{XMin: 10, YMin: 20, XMax: 110, YMax: 220},
				Segment:    objtrail.Polygon{{0.1, 0.2}, {0.3, 0.2}, {0.3, 0.6}},
			},
			Identity: idPtr(7),
		},
		{
			DetectionRecord: objtrail.DetectionRecord{
				ClassID:    0,
				ClassName:  "person",
				Confidence: 0.52,
				Box:        objtrail.BoundingBox{XMin: 300, YMin: 40, XMax: 360, YMax: 180},
			},
		},
	}

	res := objtrail.FrameResult{Frame: 1, Width: 640, Height: 480, Detections: dets}
	require.NoError(t, s.SaveFrame("run-1", res))

	got, err := s.Detections("run-1", 1)
	require.NoError(t, err)

	if diff := cmp.Diff(dets, got); diff != "" {
		t.Errorf("detections round trip mismatch (-want +got):\n%s", diff)
	}

	n, err := s.FrameCount("run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveFrameDuplicate(t *testing.T) {

	s := setupTestStore(t)

	require.NoError(t, s.SaveRun(Run{ID: "run-3", StartedAt: time.Now()}))

	res := objtrail.FrameResult{Frame: 5, Width: 64, Height: 64}
	require.NoError(t, s.SaveFrame("run-3", res))

	// the frame number is part of the primary key, the pipeline never
	// produces the same frame twice within a run
	assert.Error(t, s.SaveFrame("run-3", res))
}

func TestStoreSink(t *testing.T) {

	s := setupTestStore(t)

	require.NoError(t, s.SaveRun(Run{ID: "run-2", StartedAt: time.Now()}))

	sink := s.Sink("run-2")

	for frame := int64(1); frame <= 3; frame++ {
		res := objtrail.FrameResult{Frame: frame, Width: 320, Height: 240}
		require.NoError(t, sink.Consume(res))
	}

	n, err := s.FrameCount("run-2")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRebind(t *testing.T) {

	pg := New(nil, DialectPostgres)
	got := pg.rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", got)

	lite := New(nil, DialectSQLite)
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}
