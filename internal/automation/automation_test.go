package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/experiment"
	"github.com/san-kum/pidtune/internal/storage"
	"github.com/san-kum/pidtune/internal/tuner"
)

const scenarioYAML = `
name: smoke
description: two short searches
jobs:
  - name: steer-twiddle
    preset: quick
    strategy: twiddle
    max_trials: 2
    plant:
      wheelbase: 3
  - preset: quick
    strategy: golden
    target: steer
    max_trials: 2
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, "smoke", sc.Name)
	require.Len(t, sc.Jobs, 2)
	assert.Equal(t, 3.0, sc.Jobs[0].Plant["wheelbase"])
	assert.Equal(t, "job-2", sc.Jobs[1].label(1))

	_, err = LoadScenario(writeScenario(t, "name: empty\n"))
	assert.ErrorIs(t, err, ErrInvalidScenario)

	_, err = LoadScenario(writeScenario(t, "jobs:\n  - strategy: annealing\n"))
	assert.ErrorIs(t, err, ErrInvalidScenario)

	_, err = LoadScenario(writeScenario(t, "jobs:\n  - strategy: twiddle\n    target: brake\n"))
	assert.ErrorIs(t, err, ErrInvalidScenario)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestJobConfig(t *testing.T) {
	cfg, err := Job{Preset: "quick", Plant: map[string]float64{"wheelbase": 3, "drag": 0.1}, MaxTrials: 7, Tolerance: 0.5}.Config()
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.Plant.Wheelbase)
	assert.Equal(t, 0.1, cfg.Plant.Drag)
	assert.Equal(t, 7, cfg.Twiddle.MaxTrials)
	assert.Equal(t, 7, cfg.Golden.MaxTrials)
	assert.Equal(t, 0.5, cfg.Twiddle.Tolerance)
	assert.Equal(t, 0.25, cfg.Episode.MaxDistance)

	cfg, err = Job{Target: "throttle", Gains: []float64{1, 2, 3}}.Config()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, cfg.Throttle.Gains)
	assert.Equal(t, config.DefaultConfig().Steer.Gains, cfg.Steer.Gains)

	_, err = Job{Plant: map[string]float64{"drag": -1}}.Config()
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)

	_, err = Job{Plant: map[string]float64{"mass": 1}}.Config()
	assert.Error(t, err)

	_, err = Job{Preset: "moon"}.Config()
	assert.Error(t, err)
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)

	store := storage.New(filepath.Join(t.TempDir(), "data"))
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), store, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "steer-twiddle", results[0].Job)
	assert.Equal(t, tuner.Twiddle, results[0].Outcome.Strategy)
	assert.Equal(t, tuner.Golden, results[1].Outcome.Strategy)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, tuner.ErrTrialLimit)
		assert.Equal(t, 2, r.Outcome.Trials)

		trials, err := store.LoadTrials(r.Session)
		require.NoError(t, err)
		assert.Len(t, trials, 2)
	}

	sessions, err := store.List()
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestRunScenarioCancelled(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := RunScenario(ctx, sc, experiment.NewRegistry(), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
}

func TestRunMonteCarlo(t *testing.T) {
	cfg := config.GetPreset("quick")
	mc := &MonteCarloConfig{Trials: 4, OffsetSpread: 0.2, SpeedSpread: 1, Seed: 7}

	results, err := RunMonteCarlo(context.Background(), cfg, experiment.NewRegistry(), mc)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, i, r.TrialID)
		assert.InDelta(t, cfg.Plant.StartOffset, r.Offset, 0.2)
		assert.GreaterOrEqual(t, r.Speed, 0.0)
		assert.NotEmpty(t, r.Reason)
	}

	again, err := RunMonteCarlo(context.Background(), cfg, experiment.NewRegistry(), mc)
	require.NoError(t, err)
	for i := range results {
		assert.Equal(t, results[i].Offset, again[i].Offset)
	}

	on, off := MonteCarloStats(results)
	assert.Equal(t, 4, on+off)

	_, err = RunMonteCarlo(context.Background(), cfg, experiment.NewRegistry(), &MonteCarloConfig{})
	assert.ErrorIs(t, err, ErrInvalidScenario)
}
