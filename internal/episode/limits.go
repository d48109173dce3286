package episode

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoStopRule indicates Limits with every stopping rule disabled.
	ErrNoStopRule = errors.New("episode: no stopping rule configured")

	// ErrInvalidLimits indicates a negative limit or tick length.
	ErrInvalidLimits = errors.New("episode: invalid limits")
)

// StopReason says which rule ended an episode.
type StopReason string

const (
	StopSteps     StopReason = "max_steps"
	StopDistance  StopReason = "max_distance"
	StopDeviation StopReason = "max_deviation"
)

// Limits bound an episode. A zero MaxSteps, MaxDistance or MaxDeviation
// disables that rule.
type Limits struct {
	MaxSteps     int
	MaxDistance  float64
	MaxDeviation float64

	// SetSpeed is the throttle controller's set point, in mph.
	SetSpeed float64
	// FixedThrottle is sent when no throttle controller is given.
	FixedThrottle float64
	// TickSeconds converts speed into distance travelled per tick.
	TickSeconds float64
}

func DefaultLimits() Limits {
	return Limits{
		MaxSteps:     2000,
		MaxDistance:  1.0,
		MaxDeviation: 2.0,
		SetSpeed:     35,
		TickSeconds:  0.1,
	}
}

func (l Limits) Validate() error {
	if l.MaxSteps < 0 || l.MaxDistance < 0 || l.MaxDeviation < 0 {
		return fmt.Errorf("%w: negative stopping rule", ErrInvalidLimits)
	}
	if !(l.TickSeconds > 0) || math.IsInf(l.TickSeconds, 0) {
		return fmt.Errorf("%w: tick length %g", ErrInvalidLimits, l.TickSeconds)
	}
	if l.MaxSteps == 0 && l.MaxDistance == 0 && l.MaxDeviation == 0 {
		return ErrNoStopRule
	}
	return nil
}

func (l Limits) stop(steps int, distance, deviation float64) StopReason {
	switch {
	case l.MaxDistance > 0 && distance > l.MaxDistance:
		return StopDistance
	case l.MaxDeviation > 0 && math.Abs(deviation) > l.MaxDeviation:
		return StopDeviation
	case l.MaxSteps > 0 && steps >= l.MaxSteps:
		return StopSteps
	}
	return ""
}
