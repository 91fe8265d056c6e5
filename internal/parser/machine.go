package parser

// OverallState is a snapshot of the accumulated installation state.
type OverallState struct {
	CurrentPhase Phase
	// PhaseHistory lists phases in entry order, without consecutive
	// duplicates. Resolving may legitimately appear more than once.
	PhaseHistory []Phase
	Completed    bool

	TotalPackages     int
	ResolvedPackages  int
	PreparedPackages  int
	DownloadedPackages int
	InstalledPackages int

	// Regressions counts rejected backwards transitions since reset.
	Regressions int
}

// stateMachine accumulates classified events into phase history and
// aggregate counters. It is owned by a single InstallParser and never
// shared.
type stateMachine struct {
	state OverallState
	warnf func(format string, args ...any)
}

func newStateMachine(warnf func(string, ...any)) *stateMachine {
	m := &stateMachine{warnf: warnf}
	m.reset()
	return m
}

func (m *stateMachine) reset() {
	m.state = OverallState{CurrentPhase: PhaseIdle}
}

func (m *stateMachine) snapshot() OverallState {
	s := m.state
	s.PhaseHistory = append([]Phase(nil), m.state.PhaseHistory...)
	return s
}

// enter attempts a transition into p. It returns false when the transition
// would regress the machine; the caller surfaces that as a warning, the
// machine stays put. Unknown lines never reach here.
func (m *stateMachine) enter(p Phase) bool {
	cur := m.state.CurrentPhase

	if p == cur {
		return true
	}

	// Terminal states admit nothing, not even error: once installed the
	// completion flag must never flip back.
	if cur.Terminal() {
		m.state.Regressions++
		m.warnf("phase transition %s -> %s after terminal state rejected", cur, p)
		return false
	}
	// Error is reachable from any live state.
	if p == PhaseError {
		m.push(p)
		return true
	}

	// Resolving is re-enterable from the resolution stages (uv restarts
	// the solve on fork). From a later stage it is a regression.
	if p == PhaseResolving && cur.rank() <= PhaseResolved.rank() {
		m.push(p)
		return true
	}

	if p.rank() < cur.rank() {
		m.state.Regressions++
		m.warnf("phase regression %s -> %s rejected", cur, p)
		return false
	}

	m.push(p)
	return true
}

func (m *stateMachine) push(p Phase) {
	m.state.CurrentPhase = p
	n := len(m.state.PhaseHistory)
	if n == 0 || m.state.PhaseHistory[n-1] != p {
		m.state.PhaseHistory = append(m.state.PhaseHistory, p)
	}
	m.state.Completed = p == PhaseInstalled
}
