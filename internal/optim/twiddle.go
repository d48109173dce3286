package optim

import (
	"fmt"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// Step size adaptation factors.
const (
	GrowFactor   = 1.1
	ShrinkFactor = 0.9
)

// Phase is the position of a CoordinateSearch in its cycle.
type Phase int

const (
	PhaseInitialize Phase = iota
	PhaseCheckStepSize
	PhaseForward
	PhaseBackward
	PhaseNextIndex
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialize:
		return "initialize"
	case PhaseCheckStepSize:
		return "check_step_size"
	case PhaseForward:
		return "forward"
	case PhaseBackward:
		return "backward"
	case PhaseNextIndex:
		return "next_index"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CoordinateSearch perturbs one gain at a time and adapts a per-gain step
// size from whether the perturbation improved the episode error. It stops
// when the step-size vector norm drops below tolerance.
//
// The search owns its gain and step vectors. Callers read the gains to probe
// with Gains and install them into the controller before each episode.
type CoordinateSearch struct {
	gains     dynamo.Vector
	steps     dynamo.Vector
	tolerance float64
	idx       int
	err       float64
	best      float64
	phase     Phase
}

func NewCoordinateSearch(gains, steps []float64, tolerance float64) (*CoordinateSearch, error) {
	s := &CoordinateSearch{}
	if err := s.Init(gains, steps, tolerance); err != nil {
		return nil, err
	}
	return s, nil
}

// Init (re)starts the search from gains with the given step sizes.
func (s *CoordinateSearch) Init(gains, steps []float64, tolerance float64) error {
	if len(gains) == 0 || len(steps) == 0 {
		return dynamo.ErrEmptyVector
	}
	if len(gains) != len(steps) {
		return fmt.Errorf("%w: %d gains, %d steps", dynamo.ErrDimensionMismatch, len(gains), len(steps))
	}
	for i, d := range steps {
		if d < 0 {
			return fmt.Errorf("%w: steps[%d] = %g", ErrInvalidStep, i, d)
		}
	}
	if !(tolerance > 0) {
		return fmt.Errorf("%w: %g", ErrInvalidTolerance, tolerance)
	}

	*s = CoordinateSearch{
		gains:     dynamo.Vector(gains).Clone(),
		steps:     dynamo.Vector(steps).Clone(),
		tolerance: tolerance,
		phase:     PhaseInitialize,
	}
	return nil
}

// SetError records the error of the episode just run with Gains.
func (s *CoordinateSearch) SetError(raw float64, minSteps, actualSteps int) {
	s.err = StepNormalized(raw, minSteps, actualSteps)
}

// AwaitingError reports whether the next Update consumes an episode error.
// CheckStepSize and NextIndex transitions only move the search along, so a
// driver may call Update again without running an episode.
func (s *CoordinateSearch) AwaitingError() bool {
	switch s.phase {
	case PhaseInitialize, PhaseForward, PhaseBackward:
		return true
	default:
		return false
	}
}

// Update performs exactly one phase transition and reports convergence.
func (s *CoordinateSearch) Update() (bool, error) {
	switch s.phase {
	case PhaseInitialize:
		s.best = s.err
		s.phase = PhaseCheckStepSize
		return false, nil

	case PhaseCheckStepSize:
		if s.steps.Norm() < s.tolerance {
			s.phase = PhaseDone
			return true, nil
		}
		s.idx = 0
		s.gains[s.idx] += s.steps[s.idx]
		s.phase = PhaseForward
		return false, nil

	case PhaseForward:
		if s.err < s.best {
			s.best = s.err
			s.steps[s.idx] *= GrowFactor
			s.phase = PhaseNextIndex
			return false, nil
		}
		s.gains[s.idx] -= 2 * s.steps[s.idx]
		s.phase = PhaseBackward
		return false, nil

	case PhaseBackward:
		if s.err < s.best {
			s.best = s.err
			s.steps[s.idx] *= GrowFactor
		} else {
			s.gains[s.idx] += s.steps[s.idx]
			s.steps[s.idx] *= ShrinkFactor
		}
		s.phase = PhaseNextIndex
		return false, nil

	case PhaseNextIndex:
		s.idx = (s.idx + 1) % len(s.gains)
		if s.idx == 0 {
			s.phase = PhaseCheckStepSize
			return false, nil
		}
		s.gains[s.idx] += s.steps[s.idx]
		s.phase = PhaseForward
		return false, nil

	case PhaseDone:
		return true, &PhaseError{Machine: "coordinate search", Phase: s.phase, Wrapped: ErrSearchDone}

	default:
		return false, &PhaseError{Machine: "coordinate search", Phase: s.phase, Wrapped: ErrUnknownPhase}
	}
}

func (s *CoordinateSearch) Gains() dynamo.Vector     { return s.gains.Clone() }
func (s *CoordinateSearch) StepSizes() dynamo.Vector { return s.steps.Clone() }
func (s *CoordinateSearch) StepNorm() float64        { return s.steps.Norm() }
func (s *CoordinateSearch) Phase() Phase             { return s.phase }
func (s *CoordinateSearch) Index() int               { return s.idx }
func (s *CoordinateSearch) LastError() float64       { return s.err }
func (s *CoordinateSearch) BestError() float64       { return s.best }
func (s *CoordinateSearch) Tolerance() float64       { return s.tolerance }
func (s *CoordinateSearch) Converged() bool          { return s.phase == PhaseDone }
