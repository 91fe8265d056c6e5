package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvmon/uvmon/internal/config"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker() *Tracker {
	return NewTracker(config.DefaultSettings().Estimator, nil)
}

func TestAddWheelExactSizeWins(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("demo", "1.0.0", 0, false, "https://example.org/demo-1.0.0-py3-none-any.whl")

	snap, ok := tr.Snapshot("demo")
	require.True(t, ok)
	assert.False(t, snap.SizeKnown)
	assert.Equal(t, StatusPending, snap.Status)

	tr.AddWheel("demo", "1.0.0", 469787, true, "")
	snap, _ = tr.Snapshot("demo")
	assert.True(t, snap.SizeKnown)
	assert.Equal(t, int64(469787), snap.TotalBytes)
}

func TestAssociateStreamByURLSuffix(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("demo", "1.0.0", 50000, true, "https://example.org/packages/demo-1.0.0-py3-none-any.whl")

	// The request goes through a mirror host; suffix matching on the wheel
	// filename still correlates it.
	pkg, ok := tr.AssociateStream(7, "https://cdn.example.org/mirror/demo-1.0.0-py3-none-any.whl")
	require.True(t, ok)
	assert.Equal(t, "demo", pkg)

	snap, _ := tr.Snapshot("demo")
	assert.Equal(t, uint64(7), snap.StreamID)
}

func TestAssociateStreamUnknownURL(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("demo", "1.0.0", 50000, true, "https://example.org/demo-1.0.0-py3-none-any.whl")

	_, ok := tr.AssociateStream(7, "https://example.org/other-2.0.0-py3-none-any.whl")
	assert.False(t, ok)
	_, ok = tr.AssociateStream(7, "")
	assert.False(t, ok)
}

func TestAssociateStreamReuseWarns(t *testing.T) {
	var warned []string
	tr := NewTracker(config.DefaultSettings().Estimator, func(format string, args ...any) {
		warned = append(warned, fmt.Sprintf(format, args...))
	})
	tr.AddWheel("demo", "1.0.0", 50000, true, "https://example.org/demo-1.0.0-py3-none-any.whl")
	tr.AddWheel("other", "2.0.0", 60000, true, "https://example.org/other-2.0.0-py3-none-any.whl")

	_, ok := tr.AssociateStream(7, "https://example.org/demo-1.0.0-py3-none-any.whl")
	require.True(t, ok)

	// Same id again while the stream is live: keep the original binding.
	pkg, ok := tr.AssociateStream(7, "https://example.org/other-2.0.0-py3-none-any.whl")
	require.True(t, ok)
	assert.Equal(t, "demo", pkg)
	require.Len(t, warned, 1)
	assert.Contains(t, warned[0], "stream 7 reused")
}

func TestAssociateFilename(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("demo", "1.0.0", 50000, true, "https://example.org/packages/demo-1.0.0-py3-none-any.whl")

	pkg, ok := tr.AssociateFilename(9, "demo-1.0.0-py3-none-any.whl")
	require.True(t, ok)
	assert.Equal(t, "demo", pkg)

	_, ok = tr.AssociateFilename(11, "no-such-file.whl")
	assert.False(t, ok)
}

func TestRecordFrameAccounting(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("demo", "1.0.0", 50000, true, "https://example.org/demo-1.0.0-py3-none-any.whl")
	_, ok := tr.AssociateStream(7, "https://example.org/demo-1.0.0-py3-none-any.whl")
	require.True(t, ok)

	snap, ok := tr.RecordFrame(7, false, t0)
	require.True(t, ok)
	assert.Equal(t, StatusDownloading, snap.Status)
	assert.Equal(t, int64(16384), snap.BytesReceived)
	assert.InDelta(t, 32.768, snap.Percent, 0.01)

	tr.RecordFrame(7, false, t0.Add(100*time.Millisecond))
	tr.RecordFrame(7, false, t0.Add(200*time.Millisecond))
	snap, _ = tr.RecordFrame(7, true, t0.Add(300*time.Millisecond))

	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, int64(50000), snap.BytesReceived, "accumulation clamps at the exact total")
	assert.Equal(t, float64(100), snap.Percent)
	assert.Equal(t, float64(0), snap.ETASeconds)
	assert.Equal(t, 0, tr.ActiveCount())
	assert.Equal(t, 1, tr.CompletedCount())
}

func TestRecordFrameUncorrelatedStream(t *testing.T) {
	tr := newTestTracker()
	_, ok := tr.RecordFrame(99, false, t0)
	assert.False(t, ok)
}

func TestRecordFrameEndStreamShortfall(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("torch", "2.5.0", 73190604, true, "https://example.org/torch-2.5.0-cp312-cp312-manylinux_2_17_x86_64.whl")
	_, ok := tr.AssociateStream(9, "https://example.org/torch-2.5.0-cp312-cp312-manylinux_2_17_x86_64.whl")
	require.True(t, ok)

	var snap Snapshot
	for i := 0; i < 640; i++ {
		snap, _ = tr.RecordFrame(9, i == 639, t0.Add(time.Duration(i)*10*time.Millisecond))
	}

	assert.Equal(t, StatusDownloading, snap.Status)
	assert.Equal(t, int64(640*16384), snap.BytesReceived)
	assert.Less(t, snap.Percent, 20.0)
	assert.Equal(t, 0, tr.CompletedCount())

	// The stream itself is gone; further frames on it are ignored.
	_, ok = tr.RecordFrame(9, false, t0.Add(7*time.Second))
	assert.False(t, ok)
}

func TestRateWindowExcludesOldSamples(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("demo", "1.0.0", 10_000_000, true, "https://example.org/demo-1.0.0-py3-none-any.whl")
	tr.AssociateStream(7, "https://example.org/demo-1.0.0-py3-none-any.whl")

	tr.RecordFrame(7, false, t0)
	// One sample at t0+1s: 16384 B/s.
	tr.RecordFrame(7, false, t0.Add(1*time.Second))
	// A long stall, then one sample at t0+10s: 16384 bytes over 9s.
	snap, _ := tr.RecordFrame(7, false, t0.Add(10*time.Second))

	require.Len(t, snap.Samples, 2)
	assert.InDelta(t, 16384.0/9.0, snap.Rate, 0.1, "samples older than the window must not contribute")
}

func TestRateAveragesWithinWindow(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("demo", "1.0.0", 10_000_000, true, "https://example.org/demo-1.0.0-py3-none-any.whl")
	tr.AssociateStream(7, "https://example.org/demo-1.0.0-py3-none-any.whl")

	tr.RecordFrame(7, false, t0)
	var snap Snapshot
	for i := 1; i <= 4; i++ {
		snap, _ = tr.RecordFrame(7, false, t0.Add(time.Duration(i)*time.Second))
	}

	assert.InDelta(t, 16384.0, snap.Rate, 0.1)
	require.Greater(t, snap.Rate, 0.0)
	remaining := float64(10_000_000 - 5*16384)
	assert.InDelta(t, remaining/16384.0, snap.ETASeconds, 0.1)
}

func TestETAUndefinedWithoutRateOrSize(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("demo", "1.0.0", 50000, true, "https://example.org/demo-1.0.0-py3-none-any.whl")
	snap, _ := tr.Snapshot("demo")
	assert.Equal(t, float64(-1), snap.ETASeconds)

	tr.AddWheel("nosize", "1.0.0", 0, false, "https://example.org/nosize-1.0.0-py3-none-any.whl")
	tr.AssociateStream(3, "https://example.org/nosize-1.0.0-py3-none-any.whl")
	tr.RecordFrame(3, false, t0)
	snap, _ = tr.RecordFrame(3, false, t0.Add(time.Second))
	assert.Equal(t, float64(-1), snap.ETASeconds)
	assert.Equal(t, float64(0), snap.Percent, "percent stays pinned while the total is unknown")
}

func TestMarkAllFailed(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("a", "1.0.0", 1000, true, "https://example.org/a-1.0.0-py3-none-any.whl")
	tr.AddWheel("b", "1.0.0", 1000, true, "https://example.org/b-1.0.0-py3-none-any.whl")
	tr.AssociateStream(1, "https://example.org/a-1.0.0-py3-none-any.whl")
	tr.RecordFrame(1, false, t0)

	assert.Equal(t, 2, tr.MarkAllFailed())
	assert.Equal(t, 0, tr.ActiveCount())
	for _, snap := range tr.All() {
		assert.Equal(t, StatusFailed, snap.Status)
	}

	// Streams are discarded with the records.
	_, ok := tr.RecordFrame(1, false, t0.Add(time.Second))
	assert.False(t, ok)
}

func TestResetKeepsFrameSize(t *testing.T) {
	tr := newTestTracker()
	tr.SetMaxFrameSize(32768)
	tr.AddWheel("demo", "1.0.0", 50000, true, "https://example.org/demo-1.0.0-py3-none-any.whl")
	tr.Reset()

	assert.Equal(t, 0, tr.ActiveCount())
	assert.Empty(t, tr.All())

	tr.AddWheel("demo", "1.0.0", 50000, true, "https://example.org/demo-1.0.0-py3-none-any.whl")
	tr.AssociateStream(7, "https://example.org/demo-1.0.0-py3-none-any.whl")
	snap, _ := tr.RecordFrame(7, false, t0)
	assert.Equal(t, int64(32768), snap.BytesReceived)
}

func TestAggregate(t *testing.T) {
	tr := newTestTracker()
	tr.AddWheel("a", "1.0.0", 100_000, true, "https://example.org/a-1.0.0-py3-none-any.whl")
	tr.AddWheel("b", "1.0.0", 0, false, "https://example.org/b-1.0.0-py3-none-any.whl")
	tr.AssociateStream(1, "https://example.org/a-1.0.0-py3-none-any.whl")
	tr.AssociateStream(3, "https://example.org/b-1.0.0-py3-none-any.whl")
	tr.RecordFrame(1, false, t0)
	tr.RecordFrame(3, false, t0)

	received, total := tr.Aggregate()
	assert.Equal(t, int64(16384), received, "unsized records are excluded from the aggregate")
	assert.Equal(t, int64(100_000), total)
}
