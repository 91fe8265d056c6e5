package parser

import (
	"github.com/uvmon/uvmon/internal/progress"
)

// StatusEvent is the parsed output of exactly one input line. Phase-specific
// fields live on the Detail variant so that each phase carries exactly the
// fields meaningful to it.
type StatusEvent struct {
	Phase   Phase
	Message string
	// Raw holds the original line when nothing matched.
	Raw string
	// Regression is set when the line implied a backwards phase transition.
	// The transition is not applied; the flag surfaces the integrity warning.
	Regression bool
	Detail     Detail
}

// Detail is a closed set of per-phase payloads.
type Detail interface{ isDetail() }

// StartedDetail carries the uv version from the startup banner.
type StartedDetail struct {
	ToolVersion string
}

// RequirementsDetail identifies the requirements file being read.
type RequirementsDetail struct {
	Path string
}

// ResolvingDetail carries resolver context. InterpreterVersion is set on
// the solve announcement; Package/Constraint on per-dependency lines.
type ResolvingDetail struct {
	InterpreterVersion string
	Package            string
	Constraint         string
}

// ResolvedDetail carries the resolution summary.
type ResolvedDetail struct {
	TotalPackages    int
	ResolutionTimeMS int64
}

// WheelDetail carries exact wheel metadata ahead of transfer. SizeKnown is
// false when the registry reported no size.
type WheelDetail struct {
	Package   string
	Version   string
	Size      int64
	SizeKnown bool
	URL       string
}

// PrepareDetail carries the preparer's planned wheel count.
type PrepareDetail struct {
	TotalWheels int
}

// ProgressDetail carries byte-level progress derived from a data-frame
// arrival correlated to a package.
type ProgressDetail struct {
	StreamID        uint64
	StreamCompleted bool
	Progress        progress.Snapshot
}

// PreparedDetail carries the preparation summary.
type PreparedDetail struct {
	Packages   int
	DurationMS int64
}

// InstallingDetail carries the install_blocking wheel count, or the count
// of packages removed by an uninstall line folded into the install phase.
type InstallingDetail struct {
	Wheels      int
	Uninstalled int
}

// InstalledDetail carries the final summary.
type InstalledDetail struct {
	Packages   int
	DurationMS int64
}

// ErrorDetail carries the text after an error marker.
type ErrorDetail struct {
	Text string
}

func (StartedDetail) isDetail()      {}
func (RequirementsDetail) isDetail() {}
func (ResolvingDetail) isDetail()    {}
func (ResolvedDetail) isDetail()     {}
func (WheelDetail) isDetail()        {}
func (PrepareDetail) isDetail()      {}
func (ProgressDetail) isDetail()     {}
func (PreparedDetail) isDetail()     {}
func (InstallingDetail) isDetail()   {}
func (InstalledDetail) isDetail()    {}
func (ErrorDetail) isDetail()        {}
