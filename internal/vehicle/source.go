package vehicle

import (
	"context"
	"fmt"

	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/episode"
)

// Start is the pose a SimSource resets to.
type Start struct {
	// Offset is the initial lateral distance from the centre line, in m.
	Offset float64
	// Speed is the initial speed, in m/s.
	Speed float64
}

// SimSource drives a Car along a Road and implements episode.Source.
type SimSource struct {
	car   *Car
	road  Road
	integ dynamo.Integrator
	dt    float64
	start Start

	state dynamo.State
	t     float64
}

func NewSimSource(car *Car, road Road, integ dynamo.Integrator, dt float64, start Start) (*SimSource, error) {
	if car == nil || integ == nil {
		return nil, fmt.Errorf("vehicle: car and integrator required")
	}
	if !(dt > 0) {
		return nil, fmt.Errorf("%w: dt %g", dynamo.ErrParameterBounds, dt)
	}
	if start.Speed < 0 {
		return nil, fmt.Errorf("%w: start speed %g", dynamo.ErrParameterBounds, start.Speed)
	}
	return &SimSource{car: car, road: road, integ: integ, dt: dt, start: start}, nil
}

func (s *SimSource) Reset(ctx context.Context) (episode.Telemetry, error) {
	if err := ctx.Err(); err != nil {
		return episode.Telemetry{}, err
	}
	s.t = 0
	s.state = dynamo.State{0, s.road.Y(0) + s.start.Offset, s.road.Heading(0), s.start.Speed}
	return s.telemetry(), nil
}

func (s *SimSource) Step(ctx context.Context, cmd episode.Command) (episode.Telemetry, error) {
	if err := ctx.Err(); err != nil {
		return episode.Telemetry{}, err
	}
	if s.state == nil {
		return episode.Telemetry{}, fmt.Errorf("vehicle: step before reset")
	}

	next := s.integ.Step(s.car, s.state, dynamo.Control{cmd.Steer, cmd.Throttle}, s.t, s.dt)
	if !next.IsValid() {
		return episode.Telemetry{}, &dynamo.StepError{
			Time:    s.t,
			State:   next,
			Wrapped: dynamo.ErrInvalidState,
		}
	}
	if next[3] < 0 {
		next[3] = 0
	}
	s.state = next
	s.t += s.dt
	return s.telemetry(), nil
}

// State returns a copy of the plant state.
func (s *SimSource) State() dynamo.State { return s.state.Clone() }

func (s *SimSource) telemetry() episode.Telemetry {
	return episode.Telemetry{
		Deviation: s.state[1] - s.road.Y(s.state[0]),
		Speed:     s.state[3] * MetersPerSecondToMPH,
	}
}

var _ episode.Source = (*SimSource)(nil)
