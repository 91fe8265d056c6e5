// Package parser turns the line-oriented debug output of a uv pip install
// subprocess into structured status events: the current installation phase,
// per-package download progress estimated from transport frame arrivals,
// and aggregate package counts.
package parser

import (
	"fmt"
	"net/http"
	"time"

	"github.com/vfaronov/httpheader"

	"github.com/uvmon/uvmon/internal/config"
	"github.com/uvmon/uvmon/internal/progress"
	"github.com/uvmon/uvmon/internal/utils"
)

// InstallParser owns all per-run state: the phase state machine, the
// download tracker, and the transient correlation context. Parsing is
// synchronous and single-threaded; callers serialize ParseLine.
type InstallParser struct {
	machine *stateMachine
	tracker *progress.Tracker

	clock func() time.Time

	// lastRequestURL remembers the most recent wheel request URL so a
	// following Headers frame without an embedded URL can still be
	// correlated.
	lastRequestURL string
	// lastSendStream is the most recent outbound stream, the target for
	// content-disposition fallback association.
	lastSendStream uint64
	haveSendStream bool

	// Relative "N.NNNs" line timestamps are anchored to the wall clock at
	// the first timestamped line.
	baseSet  bool
	baseWall time.Time
	baseRel  float64
}

// Option configures an InstallParser.
type Option func(*InstallParser)

// WithClock substitutes the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(p *InstallParser) { p.clock = clock }
}

// New builds a parser from settings. A nil settings uses defaults.
func New(settings *config.Settings, opts ...Option) *InstallParser {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	p := &InstallParser{
		machine: newStateMachine(utils.Debug),
		clock:   time.Now,
	}
	p.tracker = progress.NewTracker(settings.Estimator, utils.Debug)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reset deterministically returns every owned collection to empty and the
// machine to idle. It is synchronous and idempotent.
func (p *InstallParser) Reset() {
	p.machine.reset()
	p.tracker.Reset()
	p.lastRequestURL = ""
	p.haveSendStream = false
	p.lastSendStream = 0
	p.baseSet = false
	p.baseRel = 0
}

// OverallState returns a snapshot of the accumulated installation state.
func (p *InstallParser) OverallState() OverallState {
	return p.machine.snapshot()
}

// DownloadProgress returns the derived progress for one package.
func (p *InstallParser) DownloadProgress(pkg string) (progress.Snapshot, bool) {
	return p.tracker.Snapshot(normalizePackage(pkg))
}

// ActiveDownloads lists in-flight downloads ordered by package name.
func (p *InstallParser) ActiveDownloads() []progress.Snapshot {
	return p.tracker.Active()
}

// AllDownloads lists every download seen this run.
func (p *InstallParser) AllDownloads() []progress.Snapshot {
	return p.tracker.All()
}

// ByteFraction reports aggregate download completion in [0,1] over all
// records with known sizes, or 0 when nothing is sized yet.
func (p *InstallParser) ByteFraction() float64 {
	received, total := p.tracker.Aggregate()
	if total <= 0 {
		return 0
	}
	return float64(received) / float64(total)
}

// ParseLine classifies one line and applies it. Exactly one StatusEvent is
// returned per call; lines that match nothing yield an inert unknown event
// and mutate no state. ParseLine never fails: malformed input is data, not
// an error.
func (p *InstallParser) ParseLine(line string) StatusEvent {
	m := classify(line)

	switch m.kind {
	case matchNone:
		return StatusEvent{Phase: PhaseUnknown, Raw: line}

	case matchStarted:
		ev := StatusEvent{
			Phase:   PhaseStarted,
			Message: fmt.Sprintf("uv %s started", m.version),
			Detail:  StartedDetail{ToolVersion: m.version},
		}
		return p.applyPhase(ev)

	case matchRequirements:
		ev := StatusEvent{
			Phase:   PhaseReadingRequirements,
			Message: fmt.Sprintf("Reading requirements from %s", m.path),
			Detail:  RequirementsDetail{Path: m.path},
		}
		return p.applyPhase(ev)

	case matchSolving:
		ev := StatusEvent{
			Phase:   PhaseResolving,
			Message: fmt.Sprintf("Solving with Python %s", m.version),
			Detail:  ResolvingDetail{InterpreterVersion: m.version},
		}
		return p.applyPhase(ev)

	case matchDependency:
		// Per-dependency chatter stays in the resolving phase without
		// re-entering it; the machine already collapses duplicates.
		msg := "Resolving " + m.pkg
		if m.constraint != "" {
			msg += " " + m.constraint
		}
		ev := StatusEvent{
			Phase:   PhaseResolving,
			Message: msg,
			Detail:  ResolvingDetail{Package: m.pkg, Constraint: m.constraint},
		}
		return p.applyPhase(ev)

	case matchResolved:
		ev := StatusEvent{
			Phase:   PhaseResolved,
			Message: fmt.Sprintf("Resolved %d packages", m.count),
			Detail:  ResolvedDetail{TotalPackages: m.count, ResolutionTimeMS: m.durationMS},
		}
		ev = p.applyPhase(ev)
		if !ev.Regression {
			p.machine.state.TotalPackages = m.count
			p.machine.state.ResolvedPackages = m.count
		}
		return ev

	case matchWheel:
		p.tracker.AddWheel(m.pkg, m.version, m.size, m.sizeKnown, m.url)
		ev := StatusEvent{
			Phase:   PhasePreparingDownload,
			Message: fmt.Sprintf("Preparing %s %s", m.pkg, m.version),
			Detail: WheelDetail{
				Package: m.pkg, Version: m.version,
				Size: m.size, SizeKnown: m.sizeKnown, URL: m.url,
			},
		}
		return p.applyPhase(ev)

	case matchPrepareTotal:
		ev := StatusEvent{
			Phase:   PhaseDownloading,
			Message: fmt.Sprintf("Downloading %d packages", m.count),
			Detail:  PrepareDetail{TotalWheels: m.count},
		}
		return p.applyPhase(ev)

	case matchPrepared:
		ev := StatusEvent{
			Phase:   PhasePrepared,
			Message: fmt.Sprintf("Prepared %d packages", m.count),
			Detail:  PreparedDetail{Packages: m.count, DurationMS: m.durationMS},
		}
		ev = p.applyPhase(ev)
		if !ev.Regression {
			p.machine.state.PreparedPackages = m.count
		}
		return ev

	case matchInstallBlocking:
		ev := StatusEvent{
			Phase:   PhaseInstalling,
			Message: fmt.Sprintf("Installing %d packages", m.count),
			Detail:  InstallingDetail{Wheels: m.count},
		}
		return p.applyPhase(ev)

	case matchUninstalled:
		// Uninstalls happen inside the install step, not as its own phase.
		ev := StatusEvent{
			Phase:   PhaseInstalling,
			Message: fmt.Sprintf("Uninstalled %d packages", m.count),
			Detail:  InstallingDetail{Uninstalled: m.count},
		}
		return p.applyPhase(ev)

	case matchInstalled:
		ev := StatusEvent{
			Phase:   PhaseInstalled,
			Message: fmt.Sprintf("Installed %d packages", m.count),
			Detail:  InstalledDetail{Packages: m.count, DurationMS: m.durationMS},
		}
		ev = p.applyPhase(ev)
		if !ev.Regression {
			p.machine.state.InstalledPackages = m.count
		}
		return ev

	case matchError:
		failed := p.tracker.MarkAllFailed()
		if failed > 0 {
			utils.Debug("error line failed %d in-flight downloads", failed)
		}
		ev := StatusEvent{
			Phase:   PhaseError,
			Message: m.text,
			Detail:  ErrorDetail{Text: m.text},
		}
		return p.applyPhase(ev)

	case matchRequestURL:
		p.lastRequestURL = m.url
		return StatusEvent{Phase: PhaseUnknown}

	case matchSendHeaders:
		url := m.url
		if url == "" {
			url = p.lastRequestURL
		}
		if _, ok := p.tracker.AssociateStream(m.streamID, url); ok {
			p.lastRequestURL = ""
		}
		p.lastSendStream = m.streamID
		p.haveSendStream = true
		return StatusEvent{Phase: PhaseUnknown}

	case matchSettings:
		p.tracker.SetMaxFrameSize(m.frameSize)
		return StatusEvent{Phase: PhaseUnknown}

	case matchDisposition:
		if p.haveSendStream {
			h := http.Header{"Content-Disposition": []string{m.header}}
			if _, name, err := httpheader.ContentDisposition(h); err == nil && name != "" {
				p.tracker.AssociateFilename(p.lastSendStream, name)
			}
		}
		return StatusEvent{Phase: PhaseUnknown}

	case matchDataFrame:
		snap, ok := p.tracker.RecordFrame(m.streamID, m.endStream, p.eventTime(m))
		if !ok {
			return StatusEvent{Phase: PhaseUnknown}
		}
		p.machine.state.DownloadedPackages = p.tracker.CompletedCount()
		ev := StatusEvent{
			Phase:   PhaseDownloading,
			Message: "Downloading " + snap.Package,
			Detail: ProgressDetail{
				StreamID:        m.streamID,
				StreamCompleted: m.endStream,
				Progress:        snap,
			},
		}
		return p.applyPhase(ev)
	}

	return StatusEvent{Phase: PhaseUnknown, Raw: line}
}

// applyPhase drives the state machine and flags rejected transitions.
func (p *InstallParser) applyPhase(ev StatusEvent) StatusEvent {
	if !p.machine.enter(ev.Phase) {
		ev.Regression = true
	}
	return ev
}

// eventTime resolves a line's moment: the embedded relative timestamp when
// present (anchored at the first one seen), the wall clock otherwise.
func (p *InstallParser) eventTime(m lineMatch) time.Time {
	if !m.hasTimestamp {
		return p.clock()
	}
	if !p.baseSet {
		p.baseSet = true
		p.baseWall = p.clock()
		p.baseRel = m.timestamp
	}
	return p.baseWall.Add(time.Duration((m.timestamp - p.baseRel) * float64(time.Second)))
}
