package progress

import "time"

// Status is the lifecycle state of one tracked package download.
type Status int

const (
	StatusPending Status = iota
	StatusDownloading
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Record tracks one package download. A record is created the moment a
// wheel-metadata line names the package, and leaves the active set when its
// stream completes with enough bytes, on failure, or on reset. The exact
// byte size from wheel metadata is authoritative; approximate sizes from
// informational banners never reach it.
type Record struct {
	Package   string
	Version   string
	TotalSize int64
	SizeKnown bool
	URL       string
	Status    Status

	StreamID  uint64
	HasStream bool

	BytesReceived int64
	Frames        int64

	StartedAt   time.Time
	CompletedAt time.Time

	samples         []RateSample
	lastSampleAt    time.Time
	lastSampleBytes int64
}

// RateSample is one timestamped bytes-per-second observation.
type RateSample struct {
	At          time.Time
	BytesPerSec float64
}

// streamInfo is the ephemeral per-stream record. It exists from the first
// association of the stream to a package until the stream's final frame.
type streamInfo struct {
	pkg       string
	frames    int64
	lastFrame time.Time
}

// Snapshot is the derived, caller-facing view of one download.
type Snapshot struct {
	Package       string
	Version       string
	TotalBytes    int64
	SizeKnown     bool
	BytesReceived int64
	Frames        int64
	Status        Status
	StreamID      uint64

	// Percent is clamped to [0,100] and reaches 100 only when
	// BytesReceived >= TotalBytes. It is pinned at 0 while the total is
	// unknown.
	Percent float64
	// Rate is the averaged transfer rate over the sliding window.
	Rate float64
	// ETASeconds is 0 when done and -1 when undefined.
	ETASeconds float64

	Samples []RateSample

	StartedAt   time.Time
	CompletedAt time.Time
}
