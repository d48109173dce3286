package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/episode"
	"github.com/san-kum/pidtune/internal/tuner"
	"github.com/san-kum/pidtune/internal/vehicle"
)

// Experiment is a simulated car, its episode runner and the controllers
// built from one Config.
type Experiment struct {
	cfg      *config.Config
	source   *vehicle.SimSource
	runner   *episode.Runner
	steer    *control.PID
	throttle *control.PID
}

func New(cfg *config.Config, reg *Registry) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	integ, err := reg.GetIntegrator(cfg.Plant.Integrator)
	if err != nil {
		return nil, err
	}
	src, err := vehicle.NewSimSource(cfg.Car(), cfg.Road(), integ, cfg.Plant.Dt, cfg.Start())
	if err != nil {
		return nil, err
	}
	runner, err := episode.NewRunner(src, cfg.Limits())
	if err != nil {
		return nil, err
	}
	for _, m := range reg.DefaultMetrics(cfg) {
		runner.AddMetric(m)
	}

	steer, err := cfg.Steer.NewPID()
	if err != nil {
		return nil, fmt.Errorf("steer: %w", err)
	}
	var throttle *control.PID
	if cfg.Throttle.Enabled {
		if throttle, err = cfg.Throttle.NewPID(); err != nil {
			return nil, fmt.Errorf("throttle: %w", err)
		}
	}

	return &Experiment{
		cfg:      cfg,
		source:   src,
		runner:   runner,
		steer:    steer,
		throttle: throttle,
	}, nil
}

// Run drives one episode with the current gains.
func (e *Experiment) Run(ctx context.Context) (*episode.Result, error) {
	return e.runner.Run(ctx, e.steer, e.throttle)
}

// Session starts a tuning session over this experiment's controllers.
func (e *Experiment) Session(opts tuner.Options) (*tuner.Session, error) {
	return tuner.New(e.runner, e.steer, e.throttle, opts)
}

func (e *Experiment) Runner() *episode.Runner   { return e.runner }
func (e *Experiment) Steer() *control.PID       { return e.steer }
func (e *Experiment) Throttle() *control.PID    { return e.throttle }
func (e *Experiment) Source() *vehicle.SimSource { return e.source }
func (e *Experiment) Config() *config.Config     { return e.cfg }
