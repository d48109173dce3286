package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/dynamo"
)

func TestControlEffort(t *testing.T) {
	t.Parallel()

	m := NewControlEffort("steer_effort", 0)
	assert.Equal(t, 0.0, m.Value())

	m.Observe(nil, dynamo.Control{-0.5, 1}, 0)
	m.Observe(nil, dynamo.Control{0.25, 1}, 0.1)
	assert.InDelta(t, 0.375, m.Value(), 1e-12)
	assert.Equal(t, "steer_effort", m.Name())

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
}

func TestOnTrack(t *testing.T) {
	t.Parallel()

	m := NewOnTrack(1)
	assert.Equal(t, 1.0, m.Value())
	for _, d := range []float64{0.1, -0.9, 1.5, -2} {
		m.Observe(dynamo.State{d, 30}, nil, 0)
	}
	assert.Equal(t, 0.5, m.Value())
}

func TestSaturation(t *testing.T) {
	t.Parallel()

	m := NewSaturation("throttle_saturation", 1, control.Bounds{Lower: 0, Upper: 1})
	m.Observe(nil, dynamo.Control{0, 1}, 0)
	m.Observe(nil, dynamo.Control{0, 0.5}, 0)
	m.Observe(nil, dynamo.Control{0, 0}, 0)
	m.Observe(nil, dynamo.Control{0}, 0)
	assert.Equal(t, 0.5, m.Value())

	m.Reset()
	assert.Equal(t, 0.0, m.Value())
}

func TestPrometheusCollectorsNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { EpisodesTotal.WithLabelValues("twiddle", "steer", "max_distance").Inc() })
	assert.NotPanics(t, func() { EpisodeSteps.WithLabelValues("twiddle", "steer").Observe(120) })
	assert.NotPanics(t, func() { TrialError.WithLabelValues("golden", "steer").Observe(0.02) })
	assert.NotPanics(t, func() { BestError.WithLabelValues("golden", "steer").Set(0.01) })
	assert.NotPanics(t, func() { StepSizeNorm.WithLabelValues("throttle").Set(0.3) })
	assert.NotPanics(t, func() { BracketWidth.WithLabelValues("steer", "kd").Set(4) })
	assert.NotPanics(t, func() { SearchesConverged.WithLabelValues("twiddle", "steer").Inc() })
}

func TestWeave(t *testing.T) {
	t.Parallel()

	m := NewWeave()
	assert.Equal(t, "weave_hz", m.Name())
	assert.Equal(t, 0.0, m.Value())

	const dt = 0.1
	for i := 0; i < 200; i++ {
		tm := float64(i) * dt
		m.Observe(dynamo.State{0.3 + 0.8*math.Sin(2*math.Pi*0.5*tm), 30}, nil, tm)
	}
	assert.InDelta(t, 0.5, m.Value(), 1e-9)

	m.Reset()
	for i := 0; i < 50; i++ {
		m.Observe(dynamo.State{0.7, 30}, nil, float64(i)*dt)
	}
	assert.Equal(t, 0.0, m.Value())
}
