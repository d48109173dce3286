package optim

import (
	"fmt"
	"math"
)

// Phi is the golden ratio, (1+√5)/2.
const Phi = 1.618033988749895

// BracketPhase names the point a BracketSearch is waiting on.
type BracketPhase int

const (
	ProbeA BracketPhase = iota
	ProbeB
	ProbeC
	ProbeD
	ProbeNewC
	ProbeNewD
	Converged
)

func (p BracketPhase) String() string {
	switch p {
	case ProbeA:
		return "probe_a"
	case ProbeB:
		return "probe_b"
	case ProbeC:
		return "probe_c"
	case ProbeD:
		return "probe_d"
	case ProbeNewC:
		return "probe_new_c"
	case ProbeNewD:
		return "probe_new_d"
	case Converged:
		return "converged"
	default:
		return fmt.Sprintf("bracket_phase(%d)", int(p))
	}
}

// BracketSearch is a golden-section search over one parameter. Each call to
// NewError consumes the error measured at the last ParamUpdate value.
//
// Once both interior points have errors, every further evaluation shrinks
// [a, b] by a factor of 1/Phi and reuses one interior point, so only one new
// point is probed per shrink.
type BracketSearch struct {
	a, b, c, d     float64
	errA, errB     float64
	errC, errD     float64
	bestX, bestErr float64
	tolerance      float64
	phase          BracketPhase
	evaluations    int
	shrinks        int
}

func NewBracketSearch(a, b, tolerance float64) (*BracketSearch, error) {
	s := &BracketSearch{}
	if err := s.Init(a, b, tolerance); err != nil {
		return nil, err
	}
	return s, nil
}

// Init (re)starts the search on [a, b].
func (s *BracketSearch) Init(a, b, tolerance float64) error {
	if !(a < b) {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidBracket, a, b)
	}
	if !(tolerance > 0) {
		return fmt.Errorf("%w: %g", ErrInvalidTolerance, tolerance)
	}
	*s = BracketSearch{
		a:         a,
		b:         b,
		c:         b - (b-a)/Phi,
		d:         a + (b-a)/Phi,
		tolerance: tolerance,
		bestErr:   math.Inf(1),
		phase:     ProbeA,
	}
	return nil
}

// ParamUpdate returns the value to evaluate next. It only reads the phase.
// After convergence it returns the best point evaluated.
func (s *BracketSearch) ParamUpdate() float64 {
	switch s.phase {
	case ProbeA:
		return s.a
	case ProbeB:
		return s.b
	case ProbeC, ProbeNewC:
		return s.c
	case ProbeD, ProbeNewD:
		return s.d
	default:
		return s.bestX
	}
}

// NewError records the error measured at ParamUpdate and advances. It
// returns true once the bracket is narrower than the tolerance.
func (s *BracketSearch) NewError(e float64) (bool, error) {
	if s.phase == Converged {
		return true, &PhaseError{Machine: "bracket search", Phase: s.phase, Wrapped: ErrSearchDone}
	}
	s.observe(s.ParamUpdate(), e)

	switch s.phase {
	case ProbeA:
		s.errA = e
		s.phase = ProbeB
		return false, nil
	case ProbeB:
		s.errB = e
		s.phase = ProbeC
		return false, nil
	case ProbeC:
		s.errC = e
		s.phase = ProbeD
		return false, nil
	case ProbeD, ProbeNewD:
		s.errD = e
	case ProbeNewC:
		s.errC = e
	default:
		return false, &PhaseError{Machine: "bracket search", Phase: s.phase, Wrapped: ErrUnknownPhase}
	}

	s.shrink()
	if math.Abs(s.a-s.b) < s.tolerance {
		s.phase = Converged
		return true, nil
	}
	return false, nil
}

// shrink drops the side of the bracket beyond the worse interior point.
func (s *BracketSearch) shrink() {
	s.shrinks++
	if s.errC < s.errD {
		s.b, s.errB = s.d, s.errD
		s.d, s.errD = s.c, s.errC
		s.c = s.b - (s.b-s.a)/Phi
		s.phase = ProbeNewC
		return
	}
	s.a, s.errA = s.c, s.errC
	s.c, s.errC = s.d, s.errD
	s.d = s.a + (s.b-s.a)/Phi
	s.phase = ProbeNewD
}

func (s *BracketSearch) observe(x, e float64) {
	s.evaluations++
	if e < s.bestErr {
		s.bestX, s.bestErr = x, e
	}
}

// Bracket returns the current interval.
func (s *BracketSearch) Bracket() (a, b float64) { return s.a, s.b }

func (s *BracketSearch) Width() float64 { return math.Abs(s.b - s.a) }

// Best returns the lowest-error point evaluated so far.
func (s *BracketSearch) Best() (x, err float64) { return s.bestX, s.bestErr }

func (s *BracketSearch) Phase() BracketPhase { return s.phase }
func (s *BracketSearch) Evaluations() int    { return s.evaluations }
func (s *BracketSearch) Shrinks() int        { return s.shrinks }
func (s *BracketSearch) Tolerance() float64  { return s.tolerance }
func (s *BracketSearch) Converged() bool     { return s.phase == Converged }
