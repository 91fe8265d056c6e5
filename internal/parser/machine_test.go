package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func quietMachine() *stateMachine {
	return newStateMachine(func(string, ...any) {})
}

func TestMachineForwardProgression(t *testing.T) {
	m := quietMachine()

	for _, p := range []Phase{
		PhaseStarted, PhaseReadingRequirements, PhaseResolving, PhaseResolved,
		PhasePreparingDownload, PhaseDownloading, PhasePrepared,
		PhaseInstalling, PhaseInstalled,
	} {
		assert.True(t, m.enter(p), "enter(%s)", p)
	}

	st := m.snapshot()
	assert.Equal(t, PhaseInstalled, st.CurrentPhase)
	assert.True(t, st.Completed)
	assert.Equal(t, 0, st.Regressions)
	assert.Equal(t, []Phase{
		PhaseStarted, PhaseReadingRequirements, PhaseResolving, PhaseResolved,
		PhasePreparingDownload, PhaseDownloading, PhasePrepared,
		PhaseInstalling, PhaseInstalled,
	}, st.PhaseHistory)
}

func TestMachineCollapsesRepeatedPhase(t *testing.T) {
	m := quietMachine()
	m.enter(PhaseStarted)
	m.enter(PhaseResolving)
	m.enter(PhaseResolving)
	m.enter(PhaseResolving)

	st := m.snapshot()
	assert.Equal(t, []Phase{PhaseStarted, PhaseResolving}, st.PhaseHistory)
}

func TestMachineRejectsRegression(t *testing.T) {
	m := quietMachine()
	m.enter(PhaseStarted)
	m.enter(PhaseResolved)
	m.enter(PhaseDownloading)

	assert.False(t, m.enter(PhaseReadingRequirements))

	st := m.snapshot()
	assert.Equal(t, PhaseDownloading, st.CurrentPhase, "machine must stay put on regression")
	assert.Equal(t, 1, st.Regressions)
}

func TestMachineResolvingReentry(t *testing.T) {
	m := quietMachine()
	m.enter(PhaseResolving)
	m.enter(PhaseResolved)

	// uv restarts the solve on fork; resolving is re-enterable from the
	// resolution stages.
	assert.True(t, m.enter(PhaseResolving))
	st := m.snapshot()
	assert.Equal(t, []Phase{PhaseResolving, PhaseResolved, PhaseResolving}, st.PhaseHistory)
	assert.Equal(t, 0, st.Regressions)

	// But not once downloads started.
	m.enter(PhaseDownloading)
	assert.False(t, m.enter(PhaseResolving))
	assert.Equal(t, PhaseDownloading, m.snapshot().CurrentPhase)
}

func TestMachineErrorReachableAnywhere(t *testing.T) {
	m := quietMachine()
	m.enter(PhaseDownloading)
	assert.True(t, m.enter(PhaseError))

	st := m.snapshot()
	assert.Equal(t, PhaseError, st.CurrentPhase)
	assert.False(t, st.Completed)
}

func TestMachineErrorAfterInstalledRejected(t *testing.T) {
	m := quietMachine()
	m.enter(PhaseInstalled)

	assert.False(t, m.enter(PhaseError))

	st := m.snapshot()
	assert.Equal(t, PhaseInstalled, st.CurrentPhase)
	assert.True(t, st.Completed, "completion must never flip back after installed")
	assert.Equal(t, 1, st.Regressions)
}

func TestMachineTerminalIsFinal(t *testing.T) {
	m := quietMachine()
	m.enter(PhaseInstalled)

	assert.False(t, m.enter(PhaseResolving))
	assert.False(t, m.enter(PhaseInstalling))

	st := m.snapshot()
	assert.Equal(t, PhaseInstalled, st.CurrentPhase)
	assert.Equal(t, 2, st.Regressions)
}
