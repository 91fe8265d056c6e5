package progress

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/uvmon/uvmon/internal/config"
)

// Tracker owns all download-progress state for one installation run: the
// active Record set, the stream-id correlation map, and completed records.
// It is not safe for concurrent use; the owning parser serializes calls.
type Tracker struct {
	frameSize  int64
	rateWindow time.Duration

	active   map[string]*Record
	finished []*Record
	streams  map[uint64]*streamInfo

	warnf func(format string, args ...any)
}

// NewTracker builds a tracker from estimator settings. warnf receives
// non-fatal data-integrity warnings and may be nil.
func NewTracker(cfg config.EstimatorSettings, warnf func(string, ...any)) *Tracker {
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	t := &Tracker{
		frameSize:  cfg.DefaultFrameSize,
		rateWindow: cfg.RateWindow,
		warnf:      warnf,
	}
	if t.frameSize <= 0 {
		t.frameSize = 16384
	}
	if t.rateWindow <= 0 {
		t.rateWindow = 5 * time.Second
	}
	t.Reset()
	return t
}

// Reset returns every collection to empty. The effective frame size is kept:
// it is a transport setting, not run state.
func (t *Tracker) Reset() {
	t.active = make(map[string]*Record)
	t.finished = nil
	t.streams = make(map[uint64]*streamInfo)
}

// AddWheel creates or updates a record from an exact wheel-metadata line.
// The exact size always wins over whatever was there before.
func (t *Tracker) AddWheel(pkg, version string, size int64, sizeKnown bool, url string) {
	rec, ok := t.active[pkg]
	if !ok {
		rec = &Record{Package: pkg, Status: StatusPending}
		t.active[pkg] = rec
	}
	rec.Version = version
	if sizeKnown {
		rec.TotalSize = size
		rec.SizeKnown = true
	}
	if url != "" {
		rec.URL = url
	}
}

// SetMaxFrameSize updates the effective data-frame size. Frames observed
// after this call are accounted at the new size.
func (t *Tracker) SetMaxFrameSize(n int64) {
	if n > 0 {
		t.frameSize = n
	}
}

// AssociateStream binds stream id to the pending record whose URL matches.
// The first association wins for the stream's lifetime; a rebind attempt
// while the stream is still live is reported as likely data corruption but
// is not fatal.
func (t *Tracker) AssociateStream(id uint64, url string) (string, bool) {
	if si, ok := t.streams[id]; ok {
		t.warnf("stream %d reused before completion (bound to %s)", id, si.pkg)
		return si.pkg, true
	}

	rec := t.findByURL(url)
	if rec == nil {
		return "", false
	}
	t.bind(id, rec)
	return rec.Package, true
}

// AssociateFilename binds a stream by wheel filename, the fallback used
// when the request line carried no URL but a content-disposition header
// named the file.
func (t *Tracker) AssociateFilename(id uint64, filename string) (string, bool) {
	if _, ok := t.streams[id]; ok {
		return "", false
	}
	for _, rec := range t.active {
		if rec.HasStream || rec.URL == "" {
			continue
		}
		if path.Base(rec.URL) == filename {
			t.bind(id, rec)
			return rec.Package, true
		}
	}
	return "", false
}

func (t *Tracker) bind(id uint64, rec *Record) {
	rec.StreamID = id
	rec.HasStream = true
	t.streams[id] = &streamInfo{pkg: rec.Package}
}

func (t *Tracker) findByURL(url string) *Record {
	if url == "" {
		return nil
	}
	for _, rec := range t.active {
		if rec.HasStream {
			continue
		}
		if rec.URL == url || (rec.URL != "" && strings.HasSuffix(url, path.Base(rec.URL))) {
			return rec
		}
	}
	return nil
}

// RecordFrame accounts one inbound data frame on stream id at the given
// time. It returns the updated snapshot of the associated package, or
// ok=false when the stream is not correlated to any download.
func (t *Tracker) RecordFrame(id uint64, endStream bool, at time.Time) (Snapshot, bool) {
	si, ok := t.streams[id]
	if !ok {
		return Snapshot{}, false
	}
	rec, ok := t.active[si.pkg]
	if !ok {
		// Record already finished; drop the stale stream entry.
		delete(t.streams, id)
		return Snapshot{}, false
	}

	si.frames++
	si.lastFrame = at
	rec.Frames++

	if rec.Status == StatusPending {
		rec.Status = StatusDownloading
		rec.StartedAt = at
		rec.lastSampleAt = at
		rec.lastSampleBytes = 0
	}

	// Byte accounting: every frame is a full effective-size frame except
	// the last, which is sized so the total is never exceeded.
	if rec.SizeKnown && rec.TotalSize > 0 {
		rec.BytesReceived += t.frameSize
		if rec.BytesReceived > rec.TotalSize {
			rec.BytesReceived = rec.TotalSize
		}
	} else {
		rec.BytesReceived += t.frameSize
	}

	t.sample(rec, at)

	if endStream {
		// The stream is gone either way; the record completes only when
		// the received bytes actually cover the total. End-of-stream with
		// a byte shortfall leaves the record downloading.
		delete(t.streams, id)
		if rec.SizeKnown && rec.TotalSize > 0 && rec.BytesReceived >= rec.TotalSize {
			t.complete(rec, at)
		}
	}

	return t.snapshotOf(rec), true
}

func (t *Tracker) sample(rec *Record, at time.Time) {
	elapsed := at.Sub(rec.lastSampleAt)
	if elapsed <= 0 {
		return
	}
	delta := rec.BytesReceived - rec.lastSampleBytes
	if delta <= 0 {
		return
	}
	rec.samples = append(rec.samples, RateSample{
		At:          at,
		BytesPerSec: float64(delta) / elapsed.Seconds(),
	})
	rec.lastSampleAt = at
	rec.lastSampleBytes = rec.BytesReceived
}

func (t *Tracker) complete(rec *Record, at time.Time) {
	rec.Status = StatusCompleted
	rec.CompletedAt = at
	delete(t.active, rec.Package)
	t.finished = append(t.finished, rec)
}

// MarkAllFailed fails every pending or downloading record, used when an
// error line terminates the run. Live streams are discarded.
func (t *Tracker) MarkAllFailed() int {
	n := 0
	for pkg, rec := range t.active {
		rec.Status = StatusFailed
		delete(t.active, pkg)
		t.finished = append(t.finished, rec)
		n++
	}
	t.streams = make(map[uint64]*streamInfo)
	return n
}

// Snapshot returns the derived progress for one package, checking active
// records first, then finished ones.
func (t *Tracker) Snapshot(pkg string) (Snapshot, bool) {
	if rec, ok := t.active[pkg]; ok {
		return t.snapshotOf(rec), true
	}
	for i := len(t.finished) - 1; i >= 0; i-- {
		if t.finished[i].Package == pkg {
			return t.snapshotOf(t.finished[i]), true
		}
	}
	return Snapshot{}, false
}

// Active returns snapshots of all in-flight downloads, ordered by package.
func (t *Tracker) Active() []Snapshot {
	out := make([]Snapshot, 0, len(t.active))
	for _, rec := range t.active {
		out = append(out, t.snapshotOf(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Package < out[j].Package })
	return out
}

// All returns snapshots of every download seen this run, finished first in
// completion order, then active ones by package.
func (t *Tracker) All() []Snapshot {
	out := make([]Snapshot, 0, len(t.finished)+len(t.active))
	for _, rec := range t.finished {
		out = append(out, t.snapshotOf(rec))
	}
	out = append(out, t.Active()...)
	return out
}

// ActiveCount reports how many downloads are still in flight.
func (t *Tracker) ActiveCount() int { return len(t.active) }

// CompletedCount reports how many downloads finished successfully.
func (t *Tracker) CompletedCount() int {
	n := 0
	for _, rec := range t.finished {
		if rec.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// Aggregate sums received and total bytes over every record with a known
// size, for overall-progress interpolation.
func (t *Tracker) Aggregate() (received, total int64) {
	for _, rec := range t.active {
		if rec.SizeKnown {
			received += rec.BytesReceived
			total += rec.TotalSize
		}
	}
	for _, rec := range t.finished {
		if rec.SizeKnown {
			received += rec.BytesReceived
			total += rec.TotalSize
		}
	}
	return received, total
}
