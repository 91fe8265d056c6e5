package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvmon/uvmon/internal/parser"
)

func succeed(ctx context.Context, rep *Reporter) error { return nil }

func TestExecuteEmptyTaskList(t *testing.T) {
	o := New(nil, nil)
	assert.ErrorIs(t, o.Execute(context.Background()), ErrNoTasks)
}

func TestExecuteRunsTasksInOrder(t *testing.T) {
	var order []string
	mk := func(name string) Task {
		return NewTask(name, "", func(ctx context.Context, rep *Reporter) error {
			order = append(order, name)
			return nil
		})
	}

	o := New(nil, []Task{mk("first"), mk("second"), mk("third")})
	require.NoError(t, o.Execute(context.Background()))

	assert.Equal(t, []string{"first", "second", "third"}, order)
	st := o.Status()
	assert.True(t, st.Completed)
	assert.Equal(t, 100, st.OverallPercent)
	assert.NoError(t, st.Err)
}

func TestExecuteRequiredFailureAborts(t *testing.T) {
	var ran []string
	boom := errors.New("network unreachable")
	mk := func(name string, err error) Task {
		return NewTask(name, "", func(ctx context.Context, rep *Reporter) error {
			ran = append(ran, name)
			return err
		})
	}

	o := New(nil, []Task{mk("first", nil), mk("second", boom), mk("third", nil)})
	err := o.Execute(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `task "second" failed`)
	assert.Equal(t, []string{"first", "second"}, ran, "a required failure must stop the sequence")

	st := o.Status()
	assert.False(t, st.Completed)
	assert.Error(t, st.Err)
}

func TestExecuteOptionalFailureSkipped(t *testing.T) {
	var ran []string
	opt := NewTask("warmup", "", func(ctx context.Context, rep *Reporter) error {
		ran = append(ran, "warmup")
		return errors.New("cache miss")
	})
	opt.Optional = true
	main := NewTask("install", "", func(ctx context.Context, rep *Reporter) error {
		ran = append(ran, "install")
		return nil
	})

	o := New(nil, []Task{opt, main})
	require.NoError(t, o.Execute(context.Background()))

	assert.Equal(t, []string{"warmup", "install"}, ran)
	assert.True(t, o.Status().Completed)
}

func TestExecuteRejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	o := New(nil, []Task{NewTask("slow", "", func(ctx context.Context, rep *Reporter) error {
		close(started)
		<-release
		return nil
	})})

	done := make(chan error, 1)
	go func() { done <- o.Execute(context.Background()) }()
	<-started

	assert.ErrorIs(t, o.Execute(context.Background()), ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestExecuteCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	third := false
	o := New(nil, []Task{
		NewTask("first", "", succeed),
		NewTask("second", "", func(ctx context.Context, rep *Reporter) error {
			cancel()
			return ctx.Err()
		}),
		NewTask("third", "", func(ctx context.Context, rep *Reporter) error {
			third = true
			return nil
		}),
	})

	err := o.Execute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, third)
}

func TestOverallPercentMonotonic(t *testing.T) {
	lines := []string{
		"    0.001s DEBUG uv uv 0.5.9 (a1b2c3d4 2024-12-10)",
		"Resolved 2 packages in 355ms",
		"Prepared 2 packages in 1.20s",
		"Installed 2 packages in 500ms",
	}
	feed := func(ctx context.Context, rep *Reporter) error {
		for _, l := range lines {
			rep.Line(l)
		}
		return nil
	}

	var history []int
	o := New(nil, []Task{NewTask("a", "", feed), NewTask("b", "", feed)})
	o.OnChange(func(st Status) { history = append(history, st.OverallPercent) })

	require.NoError(t, o.Execute(context.Background()))

	require.NotEmpty(t, history)
	prev := 0
	for _, pct := range history {
		assert.GreaterOrEqual(t, pct, prev, "overall percent must never decrease")
		prev = pct
	}
	assert.Equal(t, 100, history[len(history)-1])

	// After the first of two tasks the combined progress sits at half.
	assert.Contains(t, history, 50)
}

func TestPhaseFractionBands(t *testing.T) {
	dl := parser.PhaseDownloading
	assert.Equal(t, 0.35, phaseFraction(dl, 0))   // nothing received yet
	assert.Equal(t, 0.75, phaseFraction(dl, 1))   // all bytes in
	assert.Equal(t, 0.55, phaseFraction(dl, 0.5)) // halfway
	assert.Equal(t, 1.0, phaseFraction(parser.PhaseInstalled, 0))
	assert.Equal(t, 0.0, phaseFraction(parser.PhaseUnknown, 0.9))
}

func TestReporterFeedsParser(t *testing.T) {
	var sawResolved bool
	o := New(nil, []Task{NewTask("install", "", func(ctx context.Context, rep *Reporter) error {
		rep.Line("Resolved 60 packages in 2.00s")
		return nil
	})})
	o.OnChange(func(st Status) {
		if st.LatestEvent != nil && st.LatestEvent.Message == "Resolved 60 packages" {
			sawResolved = true
		}
	})

	require.NoError(t, o.Execute(context.Background()))
	assert.True(t, sawResolved)

	st := o.Status()
	assert.True(t, st.Completed)
	assert.Equal(t, 100, st.OverallPercent)
}

func TestTaskPerRunIsolation(t *testing.T) {
	var firstEvent, secondEvent Status
	o := New(nil, []Task{
		NewTask("a", "", func(ctx context.Context, rep *Reporter) error {
			rep.Line("Resolved 60 packages in 2.00s")
			return nil
		}),
		NewTask("b", "", func(ctx context.Context, rep *Reporter) error {
			rep.Line("    0.001s DEBUG uv uv 0.5.9 (a1b2c3d4 2024-12-10)")
			return nil
		}),
	})
	o.OnChange(func(st Status) {
		if st.LatestEvent == nil {
			return
		}
		switch st.TaskIndex {
		case 0:
			firstEvent = st
		case 1:
			secondEvent = st
		}
	})

	require.NoError(t, o.Execute(context.Background()))
	require.NotNil(t, firstEvent.LatestEvent)
	require.NotNil(t, secondEvent.LatestEvent)
	// The second task starts from a fresh parser: its first event reflects
	// the startup banner, not leftover resolution state.
	assert.Equal(t, "uv 0.5.9 started", secondEvent.LatestEvent.Message)
}

func TestNewTaskGeneratesIDs(t *testing.T) {
	a := NewTask("a", "", succeed)
	b := NewTask("b", "", succeed)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.Duration(0), a.EstimatedDuration)
}
