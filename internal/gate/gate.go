// Package gate filters the raw stream of parser events down to the updates
// a UI actually needs: phase transitions always pass, resolver chatter and
// sub-threshold byte deltas are suppressed, and long silent gaps are broken
// so progress never appears stalled.
package gate

import (
	"math"
	"strings"
	"time"

	"github.com/uvmon/uvmon/internal/config"
	"github.com/uvmon/uvmon/internal/parser"
)

// Gate is the stateful dedup/rate-limit filter between the parser and
// external consumers. Not safe for concurrent use; the owner serializes
// Offer calls the same way it serializes ParseLine.
type Gate struct {
	cfg   config.GateSettings
	clock func() time.Time

	forwarded bool

	lastPhase     parser.Phase
	lastMessage   string
	lastPackage   string
	lastCompleted bool
	lastError     string
	lastTotal     int
	lastCounts    [5]int

	resolvingForwardAt  time.Time
	lastResolvingAction string

	lastBytes      map[string]int64
	lastProgressAt time.Time
	lastRate       float64
	lastETA        float64
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock substitutes the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(g *Gate) { g.clock = clock }
}

// New builds a gate from settings.
func New(cfg config.GateSettings, opts ...Option) *Gate {
	g := &Gate{cfg: cfg, clock: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	g.Reset()
	return g
}

// Reset clears all internal timers and the last-forwarded snapshot.
func (g *Gate) Reset() {
	g.forwarded = false
	g.lastPhase = parser.PhaseIdle
	g.lastMessage = ""
	g.lastPackage = ""
	g.lastCompleted = false
	g.lastError = ""
	g.lastTotal = 0
	g.lastCounts = [5]int{}
	g.resolvingForwardAt = time.Time{}
	g.lastResolvingAction = ""
	g.lastBytes = make(map[string]int64)
	g.lastProgressAt = time.Time{}
	g.lastRate = 0
	g.lastETA = 0
}

// Offer decides whether one event should reach external consumers. The
// rules are applied in priority order; the first matching rule wins.
func (g *Gate) Offer(ev parser.StatusEvent, st parser.OverallState) bool {
	now := g.clock()
	phase := st.CurrentPhase

	// Rule 1: the first event is always forwarded.
	if !g.forwarded {
		return g.forward(ev, st, now)
	}

	// Rule 2: a phase change is always forwarded.
	if phase != g.lastPhase {
		return g.forward(ev, st, now)
	}

	// Rule 3: inside resolving, only a total-count change or fresh
	// message gets through, at most once per cooldown.
	if phase == parser.PhaseResolving {
		totalChanged := st.TotalPackages > 0 && st.TotalPackages != g.lastTotal
		freshMessage := ev.Message != "" && ev.Message != g.lastResolvingAction
		if !totalChanged && !freshMessage {
			return false
		}
		if now.Sub(g.resolvingForwardAt) < g.cfg.ResolvingCooldown {
			return false
		}
		return g.forward(ev, st, now)
	}

	// Rule 4: package, counter, completion, or error changes.
	if pkg := eventPackage(ev); pkg != "" && pkg != g.lastPackage {
		return g.forward(ev, st, now)
	}
	if g.lastCounts != counts(st) {
		return g.forward(ev, st, now)
	}
	if st.Completed != g.lastCompleted {
		return g.forward(ev, st, now)
	}
	if e := errText(ev); e != "" && e != g.lastError {
		return g.forward(ev, st, now)
	}

	// Rule 5: a genuinely new message, unless it merely restates an
	// already-reported resolving action.
	if ev.Message != "" && ev.Message != g.lastMessage {
		if !strings.HasPrefix(ev.Message, "Resolving ") || ev.Message != g.lastResolvingAction {
			return g.forward(ev, st, now)
		}
	}

	// Rules 6 and 7 only apply to byte-progress events.
	if d, ok := ev.Detail.(parser.ProgressDetail); ok {
		snap := d.Progress

		// Rule 6: byte delta over threshold, or the quiet gap expired.
		delta := snap.BytesReceived - g.lastBytes[snap.Package]
		if delta >= g.cfg.ByteDeltaThreshold {
			return g.forward(ev, st, now)
		}
		if !g.lastProgressAt.IsZero() && now.Sub(g.lastProgressAt) > g.maxQuiet(snap.TotalBytes) {
			return g.forward(ev, st, now)
		}

		// Rule 7: meaningful rate or ETA movement.
		if rateChanged(g.lastRate, snap.Rate) {
			return g.forward(ev, st, now)
		}
		if snap.ETASeconds >= 0 && g.lastETA >= 0 && math.Abs(snap.ETASeconds-g.lastETA) > 5 {
			return g.forward(ev, st, now)
		}
	}

	// Rule 8: suppressed.
	return false
}

// maxQuiet is the longest allowed silence between forwarded byte updates.
// Large transfers update often enough that a short bound is safe; small
// ones get a longer one to avoid pure timer traffic.
func (g *Gate) maxQuiet(total int64) time.Duration {
	if total >= g.cfg.LargeTransferBytes {
		return g.cfg.MaxQuietLarge
	}
	return g.cfg.MaxQuietSmall
}

func (g *Gate) forward(ev parser.StatusEvent, st parser.OverallState, now time.Time) bool {
	g.forwarded = true
	g.lastPhase = st.CurrentPhase
	if ev.Message != "" {
		g.lastMessage = ev.Message
	}
	if pkg := eventPackage(ev); pkg != "" {
		g.lastPackage = pkg
	}
	g.lastCompleted = st.Completed
	if e := errText(ev); e != "" {
		g.lastError = e
	}
	g.lastTotal = st.TotalPackages
	g.lastCounts = counts(st)

	if st.CurrentPhase == parser.PhaseResolving {
		g.resolvingForwardAt = now
	}
	if strings.HasPrefix(ev.Message, "Resolving ") {
		g.lastResolvingAction = ev.Message
	}
	if d, ok := ev.Detail.(parser.ProgressDetail); ok {
		g.lastBytes[d.Progress.Package] = d.Progress.BytesReceived
		g.lastProgressAt = now
		g.lastRate = d.Progress.Rate
		g.lastETA = d.Progress.ETASeconds
	}
	return true
}

func counts(st parser.OverallState) [5]int {
	return [5]int{
		st.TotalPackages, st.ResolvedPackages, st.PreparedPackages,
		st.DownloadedPackages, st.InstalledPackages,
	}
}

func eventPackage(ev parser.StatusEvent) string {
	switch d := ev.Detail.(type) {
	case parser.WheelDetail:
		return d.Package
	case parser.ProgressDetail:
		return d.Progress.Package
	case parser.ResolvingDetail:
		return d.Package
	}
	return ""
}

func errText(ev parser.StatusEvent) string {
	if d, ok := ev.Detail.(parser.ErrorDetail); ok {
		return d.Text
	}
	return ""
}

// rateChanged reports a rate movement worth forwarding: a relative change
// above 10%, or crossing zero in either direction.
func rateChanged(prev, cur float64) bool {
	if (prev == 0) != (cur == 0) {
		return true
	}
	if prev == 0 {
		return false
	}
	return math.Abs(cur-prev)/prev > 0.10
}
