package optim

import (
	"fmt"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// Range is a closed search interval for one gain component.
type Range struct {
	Lo float64
	Hi float64
}

// GainSweep runs a BracketSearch on one gain component at a time, cycling
// through every component. After each full cycle it compares the gains with
// the previous cycle and stops once they moved less than the sweep tolerance.
type GainSweep struct {
	gains     dynamo.Vector
	previous  dynamo.Vector
	ranges    []Range
	ratio     float64
	tolerance float64
	idx       int
	cycles    int
	lastMove  float64
	bracket   BracketSearch
	done      bool
}

// NewGainSweep starts a sweep from gains. Each component i is searched over
// ranges[i] down to a bracket width of ratio * (Hi - Lo).
func NewGainSweep(gains []float64, ranges []Range, ratio, tolerance float64) (*GainSweep, error) {
	if len(gains) == 0 {
		return nil, dynamo.ErrEmptyVector
	}
	if len(gains) != len(ranges) {
		return nil, fmt.Errorf("%w: %d gains, %d ranges", dynamo.ErrDimensionMismatch, len(gains), len(ranges))
	}
	if !(ratio > 0 && ratio < 1) {
		return nil, fmt.Errorf("%w: bracket ratio %g", ErrInvalidTolerance, ratio)
	}
	if !(tolerance > 0) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidTolerance, tolerance)
	}
	for i, r := range ranges {
		if !(r.Lo < r.Hi) {
			return nil, fmt.Errorf("%w: range %d [%g, %g]", ErrInvalidBracket, i, r.Lo, r.Hi)
		}
	}

	s := &GainSweep{
		gains:     dynamo.Vector(gains).Clone(),
		previous:  dynamo.Vector(gains).Clone(),
		ranges:    append([]Range(nil), ranges...),
		ratio:     ratio,
		tolerance: tolerance,
		lastMove:  -1,
	}
	if err := s.startComponent(0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GainSweep) startComponent(i int) error {
	r := s.ranges[i]
	s.idx = i
	return s.bracket.Init(r.Lo, r.Hi, s.ratio*(r.Hi-r.Lo))
}

// Probe returns the full gain vector to evaluate next.
func (s *GainSweep) Probe() dynamo.Vector {
	g := s.gains.Clone()
	if !s.done {
		g[s.idx] = s.bracket.ParamUpdate()
	}
	return g
}

// Report feeds the error measured at Probe. It returns true when the sweep
// has converged.
func (s *GainSweep) Report(e float64) (bool, error) {
	if s.done {
		return true, &PhaseError{Machine: "gain sweep", Phase: s.bracket.Phase(), Wrapped: ErrSearchDone}
	}
	found, err := s.bracket.NewError(e)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	s.gains[s.idx], _ = s.bracket.Best()
	next := (s.idx + 1) % len(s.gains)
	if next == 0 {
		s.cycles++
		diff := make(dynamo.Vector, len(s.gains))
		for i := range s.gains {
			diff[i] = s.previous[i] - s.gains[i]
		}
		s.lastMove = diff.Norm()
		s.previous = s.gains.Clone()
		if s.lastMove < s.tolerance {
			s.done = true
			return true, nil
		}
	}
	return false, s.startComponent(next)
}

// Gains returns the settled gains. The component under search keeps its
// value from the last cycle until its bracket converges.
func (s *GainSweep) Gains() dynamo.Vector { return s.gains.Clone() }

func (s *GainSweep) Index() int               { return s.idx }
func (s *GainSweep) Cycles() int              { return s.cycles }
func (s *GainSweep) Bracket() *BracketSearch  { return &s.bracket }
func (s *GainSweep) Converged() bool          { return s.done }

// LastMove is the gain change over the last full cycle, or -1 before the
// first cycle completes.
func (s *GainSweep) LastMove() float64 { return s.lastMove }
