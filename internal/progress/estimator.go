package progress

// snapshotOf derives the caller-facing progress view from a record.
func (t *Tracker) snapshotOf(rec *Record) Snapshot {
	s := Snapshot{
		Package:       rec.Package,
		Version:       rec.Version,
		TotalBytes:    rec.TotalSize,
		SizeKnown:     rec.SizeKnown,
		BytesReceived: rec.BytesReceived,
		Frames:        rec.Frames,
		Status:        rec.Status,
		StreamID:      rec.StreamID,
		Samples:       append([]RateSample(nil), rec.samples...),
		StartedAt:     rec.StartedAt,
		CompletedAt:   rec.CompletedAt,
	}

	if rec.SizeKnown && rec.TotalSize > 0 {
		s.Percent = float64(rec.BytesReceived) / float64(rec.TotalSize) * 100
		if s.Percent > 100 {
			s.Percent = 100
		}
	}

	s.Rate = t.averagedRate(rec)
	s.ETASeconds = t.eta(rec, s.Percent, s.Rate)
	return s
}

// averagedRate averages the samples falling within the rate window ending
// at the most recent sample. Older samples stay in history but do not
// contribute.
func (t *Tracker) averagedRate(rec *Record) float64 {
	n := len(rec.samples)
	if n == 0 {
		return 0
	}
	cutoff := rec.samples[n-1].At.Add(-t.rateWindow)

	var sum float64
	var count int
	for i := n - 1; i >= 0; i-- {
		if rec.samples[i].At.Before(cutoff) {
			break
		}
		sum += rec.samples[i].BytesPerSec
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// eta estimates seconds remaining. Zero once complete, -1 when the total
// size or the rate gives nothing to estimate from.
func (t *Tracker) eta(rec *Record, percent, rate float64) float64 {
	if percent >= 100 {
		return 0
	}
	if !rec.SizeKnown || rec.TotalSize <= 0 || rate <= 0 {
		return -1
	}
	remaining := rec.TotalSize - rec.BytesReceived
	if remaining < 0 {
		remaining = 0
	}
	return float64(remaining) / rate
}
