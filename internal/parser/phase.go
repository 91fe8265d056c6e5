package parser

// Phase is a named stage of the uv installation lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarted
	PhaseReadingRequirements
	PhaseResolving
	PhaseResolved
	PhasePreparingDownload
	PhaseDownloading
	PhasePrepared
	PhaseInstalling
	PhaseInstalled
	PhaseError
	PhaseUnknown
)

var phaseNames = map[Phase]string{
	PhaseIdle:                "idle",
	PhaseStarted:             "started",
	PhaseReadingRequirements: "reading_requirements",
	PhaseResolving:           "resolving",
	PhaseResolved:            "resolved",
	PhasePreparingDownload:   "preparing_download",
	PhaseDownloading:         "downloading",
	PhasePrepared:            "prepared",
	PhaseInstalling:          "installing",
	PhaseInstalled:           "installed",
	PhaseError:               "error",
	PhaseUnknown:             "unknown",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

// Terminal reports whether no further phase can follow.
func (p Phase) Terminal() bool {
	return p == PhaseInstalled || p == PhaseError
}

// rank orders the lifecycle phases for regression detection. Unknown and
// error sit outside the ordering: unknown never moves the machine, error
// is reachable from anywhere.
func (p Phase) rank() int {
	switch p {
	case PhaseIdle:
		return 0
	case PhaseStarted:
		return 1
	case PhaseReadingRequirements:
		return 2
	case PhaseResolving:
		return 3
	case PhaseResolved:
		return 4
	case PhasePreparingDownload:
		return 5
	case PhaseDownloading:
		return 6
	case PhasePrepared:
		return 7
	case PhaseInstalling:
		return 8
	case PhaseInstalled:
		return 9
	default:
		return -1
	}
}
