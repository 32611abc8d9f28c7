package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotPercentiles(t *testing.T) {
	s := New(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		s.Record(time.Duration(ms)*time.Millisecond, 10, true)
	}

	snap := s.Snapshot()
	assert.Equal(t, 5, snap.Count)
	assert.Equal(t, int64(100), snap.MinMs)
	assert.Equal(t, int64(500), snap.MaxMs)
	assert.InDelta(t, 300, snap.AvgMs, 1e-9)
	assert.InDelta(t, 300, snap.P50Ms, 1e-9)
	assert.InDelta(t, 480, snap.P95Ms, 1e-9)
	assert.InDelta(t, 496, snap.P99Ms, 1e-9)
	assert.InDelta(t, 10, snap.AvgTokens, 1e-9)
	assert.Zero(t, snap.Failures)
}

func TestSnapshotCountsFailures(t *testing.T) {
	s := New(time.Hour)
	s.Record(time.Millisecond, 4, true)
	s.Record(time.Millisecond, 0, false)
	s.Record(time.Millisecond, 200, false)

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Count)
	assert.Equal(t, 2, snap.Failures)
	assert.InDelta(t, 68, snap.AvgTokens, 1e-9)
}

func TestPrunesExpiredSamples(t *testing.T) {
	s := New(10 * time.Millisecond)
	s.Record(100*time.Millisecond, 1, true)
	time.Sleep(25 * time.Millisecond)
	assert.Zero(t, s.Snapshot().Count)

	s.Record(200*time.Millisecond, 1, true)
	snap := s.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, int64(200), snap.MinMs)
	assert.Equal(t, int64(200), snap.MaxMs)
}

func TestRecordClampsNegativeDuration(t *testing.T) {
	s := New(time.Hour)
	s.Record(-10*time.Millisecond, 1, true)
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, int64(0), snap.MinMs)
}

func TestEmptySnapshot(t *testing.T) {
	assert.Equal(t, Snapshot{}, New(0).Snapshot())
}
