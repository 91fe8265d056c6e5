package timeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvmon/uvmon/internal/progress"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func snap(pkg string, stream uint64, size int64, start, end time.Duration, status progress.Status) progress.Snapshot {
	s := progress.Snapshot{
		Package:    pkg,
		Version:    "1.0.0",
		StreamID:   stream,
		TotalBytes: size,
		SizeKnown:  true,
		Frames:     size / 16384,
		Status:     status,
		StartedAt:  base.Add(start),
	}
	if status == progress.StatusCompleted {
		s.CompletedAt = base.Add(end)
	}
	return s
}

func TestBuildTimings(t *testing.T) {
	r := Build([]progress.Snapshot{
		snap("aiohttp", 7, 1_000_000, 0, 1*time.Second, progress.StatusCompleted),
	})

	require.Len(t, r.Downloads, 1)
	d := r.Downloads[0]
	assert.Equal(t, "aiohttp", d.Package)
	assert.True(t, d.Complete)
	assert.Equal(t, int64(1000), d.DurationMS)
	// 1 MB in one second is 8 Mbps.
	assert.InDelta(t, 8.0, d.SpeedMbps, 0.01)
	assert.Equal(t, int64(1000), r.WindowMS)
}

func TestBuildSkipsNeverStarted(t *testing.T) {
	pending := progress.Snapshot{Package: "queued", Status: progress.StatusPending}
	r := Build([]progress.Snapshot{
		pending,
		snap("aiohttp", 7, 1_000_000, 0, time.Second, progress.StatusCompleted),
	})
	require.Len(t, r.Downloads, 1)
	assert.Equal(t, "aiohttp", r.Downloads[0].Package)
}

func TestBuildOverlapsAndConcurrency(t *testing.T) {
	r := Build([]progress.Snapshot{
		snap("a", 1, 1_000_000, 0, 2*time.Second, progress.StatusCompleted),
		snap("b", 3, 1_000_000, 1*time.Second, 3*time.Second, progress.StatusCompleted),
		snap("c", 5, 1_000_000, 4*time.Second, 5*time.Second, progress.StatusCompleted),
	})

	require.Len(t, r.Overlaps, 1)
	assert.Equal(t, "a", r.Overlaps[0].A)
	assert.Equal(t, "b", r.Overlaps[0].B)
	assert.Equal(t, int64(1000), r.Overlaps[0].DurationMS)

	assert.Equal(t, 2, r.MaxConcurrent)
	assert.Equal(t, int64(5000), r.WindowMS)
}

func TestBuildBackToBackNotConcurrent(t *testing.T) {
	// b starts at the instant a ends; close sorts before open.
	r := Build([]progress.Snapshot{
		snap("a", 1, 1_000_000, 0, 1*time.Second, progress.StatusCompleted),
		snap("b", 3, 1_000_000, 1*time.Second, 2*time.Second, progress.StatusCompleted),
	})
	assert.Equal(t, 1, r.MaxConcurrent)
	assert.Empty(t, r.Overlaps)
}

func TestBuildIncompleteDownload(t *testing.T) {
	r := Build([]progress.Snapshot{
		snap("torch", 9, 73_190_604, 0, 0, progress.StatusDownloading),
	})

	require.Len(t, r.Downloads, 1)
	d := r.Downloads[0]
	assert.False(t, d.Complete)
	assert.Equal(t, int64(0), d.DurationMS)
	assert.Equal(t, float64(0), d.SpeedMbps)
	assert.Equal(t, 1, r.MaxConcurrent, "an open-ended transfer still counts toward concurrency")
}

func TestRenderEmpty(t *testing.T) {
	out := Build(nil).Render()
	assert.Contains(t, out, "no downloads observed")
}

func TestRenderReport(t *testing.T) {
	r := Build([]progress.Snapshot{
		snap("aiohttp", 7, 1_000_000, 0, 1*time.Second, progress.StatusCompleted),
		snap("numpy", 9, 2_000_000, 500*time.Millisecond, 2*time.Second, progress.StatusCompleted),
	})
	out := r.Render()

	assert.Contains(t, out, "2 transfers")
	assert.Contains(t, out, "peak concurrency 2")
	assert.Contains(t, out, "aiohttp 1.0.0")
	assert.Contains(t, out, "Mbps")
	assert.Contains(t, out, "Overlapping transfers:")

	// Each completed transfer gets one timeline bar.
	bars := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "[") && strings.Contains(line, "]") {
			bars++
		}
	}
	assert.Equal(t, 2, bars)
}
