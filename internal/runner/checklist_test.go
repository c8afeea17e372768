package runner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/benchtop/internal/domain"
	"github.com/hperssn/benchtop/internal/runner"
)

func twoStepChecklist(t *testing.T) *domain.Checklist {
	t.Helper()
	def, err := domain.NewChecklist("battery", "Battery swap", "phone", "battery", 20, []domain.StepDefinition{
		{Order: 1, Title: "Power off"},
		{Order: 2, Title: "Heat back panel", TimerSeconds: domain.Seconds(30)},
	})
	require.NoError(t, err)
	return def
}

func timedChecklist(t *testing.T) *domain.Checklist {
	t.Helper()
	def, err := domain.NewChecklist("timed", "Timed", "", "", 0, []domain.StepDefinition{
		{Order: 1, Title: "Soak", TimerSeconds: domain.Seconds(5)},
		{Order: 2, Title: "Cure", TimerSeconds: domain.Seconds(60)},
		{Order: 3, Title: "Inspect"},
	})
	require.NoError(t, err)
	return def
}

func TestToggleStepFlips(t *testing.T) {
	r := runner.NewChecklistRunner(twoStepChecklist(t))

	for i := 0; i < 6; i++ {
		require.True(t, r.ToggleStep(1))
		assert.Equal(t, i%2 == 0, r.IsComplete(1), "after toggle %d", i+1)
	}
}

func TestToggleStepUnknownIsNoop(t *testing.T) {
	r := runner.NewChecklistRunner(twoStepChecklist(t))

	assert.False(t, r.ToggleStep(99))
	assert.Empty(t, r.CompletedSteps())
	assert.Equal(t, 0, r.Progress().Completed)
}

func TestToggleStepLeavesTimerAlone(t *testing.T) {
	r := runner.NewChecklistRunner(twoStepChecklist(t))
	require.True(t, r.StartTimer(2, 30))

	r.ToggleStep(2)
	r.ToggleStep(1)

	active, ok := r.ActiveStep()
	assert.True(t, ok)
	assert.Equal(t, 2, active)
	assert.Equal(t, 30, r.RemainingSeconds())
	assert.True(t, r.TimerRunning())
}

func TestAllStepsComplete(t *testing.T) {
	r := runner.NewChecklistRunner(timedChecklist(t))
	assert.False(t, r.AllStepsComplete())

	r.ToggleStep(3)
	r.ToggleStep(1)
	assert.False(t, r.AllStepsComplete())

	r.ToggleStep(2)
	assert.True(t, r.AllStepsComplete())

	r.ToggleStep(1)
	assert.False(t, r.AllStepsComplete())
}

func TestAllStepsCompleteEmptyChecklist(t *testing.T) {
	def, err := domain.NewChecklist("empty", "", "", "", 0, nil)
	require.NoError(t, err)

	r := runner.NewChecklistRunner(def)
	assert.True(t, r.AllStepsComplete())
	assert.Equal(t, "0 / 0 completed", r.Progress().String())
}

func TestStartTimerPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		order   int
		seconds int
	}{
		{name: "zero seconds", order: 1, seconds: 0},
		{name: "negative seconds", order: 1, seconds: -3},
		{name: "step without timer", order: 3, seconds: 10},
		{name: "unknown step", order: 42, seconds: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runner.NewChecklistRunner(timedChecklist(t))

			assert.False(t, r.StartTimer(tt.order, tt.seconds))
			_, active := r.ActiveStep()
			assert.False(t, active)
			assert.False(t, r.TimerRunning())
		})
	}
}

func TestStartTimerReplacesActive(t *testing.T) {
	r := runner.NewChecklistRunner(timedChecklist(t))

	require.True(t, r.StartTimer(1, 5))
	r.Tick()
	require.True(t, r.StartTimer(2, 60))

	active, ok := r.ActiveStep()
	require.True(t, ok)
	assert.Equal(t, 2, active)
	assert.Equal(t, 60, r.RemainingSeconds())
	assert.True(t, r.TimerRunning())
}

func TestTimerCountdownFinishesOnce(t *testing.T) {
	r := runner.NewChecklistRunner(timedChecklist(t))
	require.True(t, r.StartTimer(1, 5))

	for i := 0; i < 4; i++ {
		_, fin := r.Tick()
		require.False(t, fin, "tick %d finished early", i+1)
	}
	assert.Equal(t, 1, r.RemainingSeconds())
	assert.True(t, r.TimerRunning())

	step, fin := r.Tick()
	assert.True(t, fin)
	assert.Equal(t, 1, step)
	assert.Equal(t, 0, r.RemainingSeconds())
	assert.False(t, r.TimerRunning())

	for i := 0; i < 3; i++ {
		_, fin = r.Tick()
		assert.False(t, fin, "finished again after completion")
	}
	assert.False(t, r.IsComplete(1), "timer completion must not mark the step done")
}

func TestStopTimerFreezesRemaining(t *testing.T) {
	r := runner.NewChecklistRunner(timedChecklist(t))
	require.True(t, r.StartTimer(2, 60))
	r.Tick()
	r.Tick()

	require.True(t, r.StopTimer())
	for i := 0; i < 10; i++ {
		r.Tick()
	}

	assert.Equal(t, 58, r.RemainingSeconds())
	assert.False(t, r.TimerRunning())
	active, ok := r.ActiveStep()
	assert.True(t, ok)
	assert.Equal(t, 2, active)
}

func TestStopTimerWithoutActiveIsNoop(t *testing.T) {
	r := runner.NewChecklistRunner(timedChecklist(t))
	assert.False(t, r.StopTimer())
}

func TestResumeContinuesCountdown(t *testing.T) {
	r := runner.NewChecklistRunner(timedChecklist(t))
	require.True(t, r.StartTimer(2, 60))
	r.Tick()
	r.StopTimer()

	assert.Equal(t, 59, r.ResumeSeconds(2))
	assert.Equal(t, 5, r.ResumeSeconds(1))
	assert.Equal(t, 0, r.ResumeSeconds(3))

	require.True(t, r.StartTimer(2, r.ResumeSeconds(2)))
	assert.Equal(t, 59, r.RemainingSeconds())
	assert.True(t, r.TimerRunning())
}

func TestResumeSecondsAfterFinishUsesDeclared(t *testing.T) {
	r := runner.NewChecklistRunner(timedChecklist(t))
	require.True(t, r.StartTimer(1, 1))
	_, fin := r.Tick()
	require.True(t, fin)

	assert.Equal(t, 5, r.ResumeSeconds(1))
}

func TestScenarioBatterySwap(t *testing.T) {
	r := runner.NewChecklistRunner(twoStepChecklist(t))

	r.ToggleStep(1)
	assert.Equal(t, []int{1}, r.CompletedSteps())

	require.True(t, r.StartTimer(2, 30))
	finishes := 0
	for i := 0; i < 30; i++ {
		if step, fin := r.Tick(); fin {
			assert.Equal(t, 2, step)
			finishes++
		}
	}
	assert.Equal(t, 1, finishes)
	assert.Equal(t, 0, r.RemainingSeconds())
	assert.False(t, r.TimerRunning())

	r.ToggleStep(2)
	assert.Equal(t, []int{1, 2}, r.CompletedSteps())
	assert.True(t, r.AllStepsComplete())
	assert.Equal(t, "2 / 2 completed", r.Progress().String())
}

func TestNewRunnerStartsFresh(t *testing.T) {
	def := twoStepChecklist(t)

	first := runner.NewChecklistRunner(def)
	first.ToggleStep(1)
	first.StartTimer(2, 30)

	second := runner.NewChecklistRunner(def)
	assert.Empty(t, second.CompletedSteps())
	_, active := second.ActiveStep()
	assert.False(t, active)
	assert.False(t, second.TimerRunning())
}

func TestCompletedStepsInDisplayOrder(t *testing.T) {
	r := runner.NewChecklistRunner(timedChecklist(t))
	r.ToggleStep(3)
	r.ToggleStep(1)

	assert.Equal(t, []int{1, 3}, r.CompletedSteps())
}
