// Package orchestrator sequences independent installation tasks into one
// combined progress signal. Tasks run strictly one after another; each gets
// a fresh parser and gate so no progress leaks between tasks.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uvmon/uvmon/internal/config"
	"github.com/uvmon/uvmon/internal/gate"
	"github.com/uvmon/uvmon/internal/parser"
	"github.com/uvmon/uvmon/internal/utils"
)

var (
	// ErrNoTasks is returned by Execute on an empty task list.
	ErrNoTasks = errors.New("orchestrator: no tasks to execute")
	// ErrAlreadyRunning is returned when Execute is invoked concurrently.
	ErrAlreadyRunning = errors.New("orchestrator: execution already in progress")
)

// Task is one independently executable installation step. EstimatedDuration
// is a UI hint only and never affects correctness. Optional tasks may fail
// without aborting the sequence.
type Task struct {
	ID          string
	Name        string
	Description string
	Optional    bool

	EstimatedDuration time.Duration

	// Run performs the task's work. It receives a Reporter whose Line
	// method feeds raw installer output into the shared parser and gate.
	Run func(ctx context.Context, rep *Reporter) error
}

// NewTask builds a task with a generated id.
func NewTask(name, description string, run func(context.Context, *Reporter) error) Task {
	return Task{ID: uuid.New().String(), Name: name, Description: description, Run: run}
}

// Status is the derived view of the whole sequence.
type Status struct {
	Tasks       []Task
	TaskIndex   int
	TaskCount   int
	CurrentTask string

	// OverallPercent is 0-100, rounded, and monotonically non-decreasing.
	OverallPercent int

	LatestEvent *parser.StatusEvent
	Completed   bool
	Err         error
}

// Orchestrator runs a fixed task list sequentially. One Execute at a time.
type Orchestrator struct {
	tasks []Task

	parser *parser.InstallParser
	gate   *gate.Gate

	onChange func(Status)

	mu          sync.Mutex
	running     bool
	completed   int
	index       int
	latestEvent *parser.StatusEvent
	overallPct  int
	done        bool
	err         error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithParser substitutes the shared parser, for tests.
func WithParser(p *parser.InstallParser) Option {
	return func(o *Orchestrator) { o.parser = p }
}

// WithGate substitutes the shared gate, for tests.
func WithGate(g *gate.Gate) Option {
	return func(o *Orchestrator) { o.gate = g }
}

// New builds an orchestrator over tasks. A nil settings uses defaults.
func New(settings *config.Settings, tasks []Task, opts ...Option) *Orchestrator {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	o := &Orchestrator{
		tasks:  tasks,
		parser: parser.New(settings),
		gate:   gate.New(settings.Gate),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnChange registers the status-change callback. Must be set before
// Execute; there is no listener registry, just this one callback.
func (o *Orchestrator) OnChange(fn func(Status)) {
	o.mu.Lock()
	o.onChange = fn
	o.mu.Unlock()
}

// Status returns the current orchestration snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	return Status{
		Tasks:          append([]Task(nil), o.tasks...),
		TaskIndex:      o.index,
		TaskCount:      len(o.tasks),
		CurrentTask:    o.currentName(),
		OverallPercent: o.overallPct,
		LatestEvent:    o.latestEvent,
		Completed:      o.done,
		Err:            o.err,
	}
}

func (o *Orchestrator) currentName() string {
	if o.index >= 0 && o.index < len(o.tasks) {
		return o.tasks[o.index].Name
	}
	return ""
}

// Execute runs all tasks in order. It rejects concurrent invocation and an
// empty task list. A failing required task aborts the sequence with the
// error wrapped in the task's name; failing optional tasks are logged and
// skipped. Cancellation surfaces as a normal task failure.
func (o *Orchestrator) Execute(ctx context.Context) error {
	if len(o.tasks) == 0 {
		return ErrNoTasks
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.running = true
	o.completed = 0
	o.overallPct = 0
	o.done = false
	o.err = nil
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	for i, t := range o.tasks {
		// Tasks must never see each other's progress.
		o.parser.Reset()
		o.gate.Reset()

		o.mu.Lock()
		o.index = i
		o.latestEvent = nil
		o.mu.Unlock()
		o.notify()

		if err := ctx.Err(); err != nil {
			return o.fail(t, err)
		}
		if err := t.Run(ctx, &Reporter{o: o}); err != nil {
			if t.Optional {
				utils.Debug("optional task %q failed: %v", t.Name, err)
				continue
			}
			return o.fail(t, err)
		}

		o.mu.Lock()
		o.completed++
		o.overallPct = o.percentLocked(0)
		o.mu.Unlock()
		o.notify()
	}

	o.mu.Lock()
	o.done = true
	o.overallPct = 100
	o.mu.Unlock()
	o.notify()
	return nil
}

func (o *Orchestrator) fail(t Task, err error) error {
	wrapped := fmt.Errorf("task %q failed: %w", t.Name, err)
	o.mu.Lock()
	o.err = wrapped
	o.mu.Unlock()
	o.notify()
	return wrapped
}

func (o *Orchestrator) notify() {
	o.mu.Lock()
	fn := o.onChange
	st := o.statusLocked()
	o.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// offer runs one line through the shared parser and gate, updating the
// combined progress when the gate lets the event through.
func (o *Orchestrator) offer(line string) {
	ev := o.parser.ParseLine(line)
	st := o.parser.OverallState()
	if !o.gate.Offer(ev, st) {
		return
	}

	frac := phaseFraction(st.CurrentPhase, o.parser.ByteFraction())

	o.mu.Lock()
	o.latestEvent = &ev
	if pct := o.percentLocked(frac); pct > o.overallPct {
		o.overallPct = pct
	}
	o.mu.Unlock()
	o.notify()
}

// percentLocked combines completed tasks with the current task's fraction.
func (o *Orchestrator) percentLocked(frac float64) int {
	if len(o.tasks) == 0 {
		return 0
	}
	pct := (float64(o.completed) + frac) / float64(len(o.tasks)) * 100
	pct = math.Round(pct)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}

// phaseFraction maps a phase to its share of one task's progress. The
// downloading band is interpolated by aggregate byte progress.
func phaseFraction(ph parser.Phase, byteFrac float64) float64 {
	switch ph {
	case parser.PhaseStarted:
		return 0.05
	case parser.PhaseReadingRequirements:
		return 0.10
	case parser.PhaseResolving:
		return 0.20
	case parser.PhaseResolved:
		return 0.30
	case parser.PhasePreparingDownload:
		return 0.35
	case parser.PhaseDownloading:
		if byteFrac < 0 {
			byteFrac = 0
		}
		if byteFrac > 1 {
			byteFrac = 1
		}
		return 0.35 + 0.40*byteFrac
	case parser.PhasePrepared:
		return 0.80
	case parser.PhaseInstalling:
		return 0.90
	case parser.PhaseInstalled:
		return 1.0
	default:
		return 0
	}
}

// Reporter is the handle a task uses to feed raw installer output lines
// into the shared progress pipeline.
type Reporter struct {
	o *Orchestrator
}

// Line parses one raw output line. Callers serialize Line calls per task;
// the orchestrator never reorders or buffers them.
func (r *Reporter) Line(line string) {
	r.o.offer(line)
}
