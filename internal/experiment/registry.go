package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/integrators"
	"github.com/san-kum/pidtune/internal/metrics"
)

type Registry struct {
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }

	return r
}

// GetIntegrator returns a fresh integrator. An empty name means rk4.
func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = "rk4"
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics are the per-episode metrics attached to every runner.
func (r *Registry) DefaultMetrics(cfg *config.Config) []dynamo.Metric {
	m := []dynamo.Metric{
		metrics.NewOnTrack(cfg.Episode.MaxDeviation / 2),
		metrics.NewControlEffort("steer_effort", 0),
		metrics.NewSaturation("steer_saturation", 0, cfg.Steer.Bounds()),
		metrics.NewWeave(),
	}
	if cfg.Throttle.Enabled {
		m = append(m,
			metrics.NewControlEffort("throttle_effort", 1),
			metrics.NewSaturation("throttle_saturation", 1, cfg.Throttle.Bounds()),
		)
	}
	return m
}
