package episode

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/dynamo"
)

// ErrNoSteer is returned when Run is given a nil steering controller.
var ErrNoSteer = errors.New("episode: steering controller required")

// Result summarizes one episode.
type Result struct {
	Steps    int
	Distance float64
	Reason   StopReason

	// Raw accumulated squared deviations after each controller's warm-up.
	SteerError    float64
	ThrottleError float64

	SteerWarmup    int
	ThrottleWarmup int

	Metrics map[string]float64
}

// Runner runs episodes against one Source. It is not safe for concurrent
// use; give each controller pair its own Runner and Source.
type Runner struct {
	src       Source
	limits    Limits
	metrics   []dynamo.Metric
	observers []Observer
}

func NewRunner(src Source, limits Limits) (*Runner, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Runner{src: src, limits: limits}, nil
}

func (r *Runner) AddMetric(m dynamo.Metric) { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer)    { r.observers = append(r.observers, o) }
func (r *Runner) Limits() Limits            { return r.limits }

// Run resets the source, starts both controllers from the first observation
// and ticks them until a stopping rule fires. throttle may be nil, in which
// case Limits.FixedThrottle is sent every tick. Both controllers are left
// reset, so the next episode must start them again.
func (r *Runner) Run(ctx context.Context, steer, throttle *control.PID) (*Result, error) {
	if steer == nil {
		return nil, ErrNoSteer
	}

	tel, err := r.src.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("episode reset: %w", err)
	}

	steer.Start(tel.Deviation)
	defer steer.Reset()
	if throttle != nil {
		throttle.Start(tel.Speed - r.limits.SetSpeed)
		defer throttle.Reset()
	}
	for _, m := range r.metrics {
		m.Reset()
	}

	res := &Result{SteerWarmup: steer.Warmup()}
	if throttle != nil {
		res.ThrottleWarmup = throttle.Warmup()
	}

	cmd := Command{}
	for {
		if err := ctx.Err(); err != nil {
			return r.finish(res, steer, throttle), err
		}

		tel, err = r.src.Step(ctx, cmd)
		if err != nil {
			return r.finish(res, steer, throttle), &dynamo.StepError{
				Step:    res.Steps,
				Time:    float64(res.Steps) * r.limits.TickSeconds,
				Wrapped: err,
			}
		}

		cmd, err = r.command(tel, steer, throttle)
		if err != nil {
			return r.finish(res, steer, throttle), err
		}
		res.Steps++
		res.Distance += tel.Speed * r.limits.TickSeconds / 3600

		t := float64(res.Steps) * r.limits.TickSeconds
		x := dynamo.State{tel.Deviation, tel.Speed}
		u := dynamo.Control{cmd.Steer, cmd.Throttle}
		for _, m := range r.metrics {
			m.Observe(x, u, t)
		}
		for _, o := range r.observers {
			o.OnTick(res.Steps, tel, cmd)
		}

		if reason := r.limits.stop(res.Steps, res.Distance, tel.Deviation); reason != "" {
			res.Reason = reason
			return r.finish(res, steer, throttle), nil
		}
	}
}

func (r *Runner) command(tel Telemetry, steer, throttle *control.PID) (Command, error) {
	s, err := steer.Tick(tel.Deviation)
	if err != nil {
		return Command{}, err
	}
	th := r.limits.FixedThrottle
	if throttle != nil {
		if th, err = throttle.Tick(tel.Speed - r.limits.SetSpeed); err != nil {
			return Command{}, err
		}
	}
	return Command{Steer: s, Throttle: th}, nil
}

func (r *Runner) finish(res *Result, steer, throttle *control.PID) *Result {
	res.SteerError = steer.AccumulatedError()
	if throttle != nil {
		res.ThrottleError = throttle.AccumulatedError()
	}
	res.Metrics = make(map[string]float64, len(r.metrics))
	for _, m := range r.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	return res
}
