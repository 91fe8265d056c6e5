// Package timeline derives a post-run view of the parallel downloads in a
// uv install: per-package timing, frame counts and speeds, overlap between
// concurrent transfers, and peak concurrency.
package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uvmon/uvmon/internal/progress"
	"github.com/uvmon/uvmon/internal/utils"
)

// Download is the timing summary of one package transfer.
type Download struct {
	Package    string
	Version    string
	StreamID   uint64
	SizeBytes  int64
	Frames     int64
	Start      time.Time
	End        time.Time
	DurationMS int64
	// SpeedMbps is megabits per second over the transfer, 0 if incomplete.
	SpeedMbps float64
	Complete  bool
}

// Overlap records two transfers that ran concurrently for some duration.
type Overlap struct {
	A          string
	B          string
	DurationMS int64
}

// Report is the assembled timeline of one run's downloads.
type Report struct {
	Downloads     []Download
	Overlaps      []Overlap
	MaxConcurrent int
	// WindowMS spans the first transfer start to the last completion.
	WindowMS int64
}

// Build assembles a report from download snapshots. Snapshots that never
// received a frame are skipped.
func Build(snaps []progress.Snapshot) *Report {
	r := &Report{}

	for _, s := range snaps {
		if s.StartedAt.IsZero() {
			continue
		}
		d := Download{
			Package:   s.Package,
			Version:   s.Version,
			StreamID:  s.StreamID,
			SizeBytes: s.TotalBytes,
			Frames:    s.Frames,
			Start:     s.StartedAt,
			End:       s.CompletedAt,
			Complete:  s.Status == progress.StatusCompleted,
		}
		if d.Complete {
			d.DurationMS = d.End.Sub(d.Start).Milliseconds()
			if d.DurationMS > 0 && d.SizeBytes > 0 {
				d.SpeedMbps = float64(d.SizeBytes) * 8 / 1e6 / (float64(d.DurationMS) / 1000)
			}
		}
		r.Downloads = append(r.Downloads, d)
	}

	sort.Slice(r.Downloads, func(i, j int) bool {
		return r.Downloads[i].Start.Before(r.Downloads[j].Start)
	})

	r.computeWindow()
	r.computeOverlaps()
	r.computeConcurrency()
	return r
}

func (r *Report) computeWindow() {
	var first, last time.Time
	for _, d := range r.Downloads {
		if first.IsZero() || d.Start.Before(first) {
			first = d.Start
		}
		if d.Complete && d.End.After(last) {
			last = d.End
		}
	}
	if !first.IsZero() && !last.IsZero() {
		r.WindowMS = last.Sub(first).Milliseconds()
	}
}

func (r *Report) computeOverlaps() {
	for i, a := range r.Downloads {
		for _, b := range r.Downloads[i+1:] {
			if !a.Complete || !b.Complete {
				continue
			}
			if a.Start.Before(b.End) && b.Start.Before(a.End) {
				start := a.Start
				if b.Start.After(start) {
					start = b.Start
				}
				end := a.End
				if b.End.Before(end) {
					end = b.End
				}
				r.Overlaps = append(r.Overlaps, Overlap{
					A:          a.Package,
					B:          b.Package,
					DurationMS: end.Sub(start).Milliseconds(),
				})
			}
		}
	}
}

func (r *Report) computeConcurrency() {
	type edge struct {
		at    time.Time
		delta int
	}
	var edges []edge
	for _, d := range r.Downloads {
		edges = append(edges, edge{d.Start, +1})
		if d.Complete {
			edges = append(edges, edge{d.End, -1})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			// Close before open at the same instant.
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	cur, max := 0, 0
	for _, e := range edges {
		cur += e.delta
		if cur > max {
			max = cur
		}
	}
	r.MaxConcurrent = max
}

// Render produces the text report with an ASCII timeline.
func (r *Report) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Download timeline: %d transfers, %s window, peak concurrency %d\n",
		len(r.Downloads), time.Duration(r.WindowMS)*time.Millisecond, r.MaxConcurrent)

	if len(r.Downloads) == 0 {
		b.WriteString("no downloads observed\n")
		return b.String()
	}

	for _, d := range r.Downloads {
		fmt.Fprintf(&b, "\n%s %s\n", d.Package, d.Version)
		fmt.Fprintf(&b, "  stream %d, %s, %d frames\n",
			d.StreamID, utils.ConvertBytesToHumanReadable(d.SizeBytes), d.Frames)
		if d.Complete {
			fmt.Fprintf(&b, "  %dms", d.DurationMS)
			if d.SpeedMbps > 0 {
				fmt.Fprintf(&b, " (%.1f Mbps)", d.SpeedMbps)
			}
			b.WriteString("\n")
		} else {
			b.WriteString("  incomplete\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(r.renderBars())

	if len(r.Overlaps) > 0 {
		b.WriteString("\nOverlapping transfers:\n")
		for _, o := range r.Overlaps {
			fmt.Fprintf(&b, "  %s & %s: %dms\n", o.A, o.B, o.DurationMS)
		}
	}

	return b.String()
}

const barWidth = 50

func (r *Report) renderBars() string {
	var first, last time.Time
	for _, d := range r.Downloads {
		if first.IsZero() || d.Start.Before(first) {
			first = d.Start
		}
		if d.Complete && d.End.After(last) {
			last = d.End
		}
	}
	span := last.Sub(first)
	if span <= 0 {
		return ""
	}

	var b strings.Builder
	for _, d := range r.Downloads {
		if !d.Complete {
			continue
		}
		start := int(float64(d.Start.Sub(first)) / float64(span) * barWidth)
		end := int(float64(d.End.Sub(first)) / float64(span) * barWidth)
		if end >= barWidth {
			end = barWidth - 1
		}

		bar := []byte(strings.Repeat(".", barWidth))
		for i := start; i <= end; i++ {
			bar[i] = '='
		}
		bar[start] = '['
		bar[end] = ']'
		fmt.Fprintf(&b, "%-12s %s %dms\n", d.Package, bar, d.DurationMS)
	}
	return b.String()
}
