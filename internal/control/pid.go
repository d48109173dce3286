package control

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/pidtune/internal/dynamo"
)

var (
	// ErrNotStarted is returned by Tick when Start has not been called for
	// the current episode.
	ErrNotStarted = errors.New("control: tick before start")

	// ErrInvalidBounds indicates lower > upper or a NaN bound.
	ErrInvalidBounds = errors.New("control: invalid output bounds")

	// ErrInvalidWarmup indicates a negative warm-up step count.
	ErrInvalidWarmup = errors.New("control: negative warm-up steps")

	// ErrUnknownParam is returned by SetParam for names it does not know.
	ErrUnknownParam = errors.New("control: unknown parameter")
)

// NumGains is the length of a PID gain vector: Kp, Ki, Kd.
const NumGains = 3

// Bounds limits the controller output.
type Bounds struct {
	Lower float64
	Upper float64
}

func (b Bounds) Validate() error {
	if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower > b.Upper {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidBounds, b.Lower, b.Upper)
	}
	return nil
}

func (b Bounds) Clamp(v float64) float64 {
	return math.Min(math.Max(v, b.Lower), b.Upper)
}

// Terms holds the proportional, integral and derivative error terms.
type Terms struct {
	P float64
	I float64
	D float64
}

// PID is an incremental PID controller driven once per tick.
//
// The integral term is never clamped. Saturation happens on the output only,
// so the integral keeps growing while the command sits at a bound.
type PID struct {
	Kp     float64
	Ki     float64
	Kd     float64
	bounds Bounds
	warmup int

	ticks       int
	terms       Terms
	accumulated float64
	started     bool
}

// NewPID returns a configured controller. It fails on the same inputs as
// Configure.
func NewPID(gains []float64, bounds Bounds, warmup int) (*PID, error) {
	p := &PID{}
	if err := p.Configure(gains, bounds, warmup); err != nil {
		return nil, err
	}
	return p, nil
}

// Configure stores gains, bounds and warm-up. It does not touch episode
// state, so it can be used to retune between episodes.
func (p *PID) Configure(gains []float64, bounds Bounds, warmup int) error {
	if err := bounds.Validate(); err != nil {
		return err
	}
	if warmup < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWarmup, warmup)
	}
	if err := p.SetGains(gains); err != nil {
		return err
	}
	p.bounds = bounds
	p.warmup = warmup
	return nil
}

// SetGains copies gains into the controller.
func (p *PID) SetGains(gains []float64) error {
	if len(gains) != NumGains {
		return fmt.Errorf("%w: want %d gains, got %d", dynamo.ErrDimensionMismatch, NumGains, len(gains))
	}
	p.Kp, p.Ki, p.Kd = gains[0], gains[1], gains[2]
	return nil
}

// Gains returns a copy of the gain vector.
func (p *PID) Gains() dynamo.Vector {
	return dynamo.Vector{p.Kp, p.Ki, p.Kd}
}

func (p *PID) Bounds() Bounds { return p.bounds }
func (p *PID) Warmup() int    { return p.warmup }
func (p *PID) Ticks() int     { return p.ticks }
func (p *PID) Terms() Terms   { return p.terms }
func (p *PID) Started() bool  { return p.started }

// Start begins an episode from the first observed deviation.
func (p *PID) Start(deviation float64) {
	p.terms = Terms{P: deviation, I: deviation}
	p.ticks = 0
	p.accumulated = 0
	p.started = true
}

// Reset ends the episode. The next Tick fails until Start is called again.
func (p *PID) Reset() {
	p.started = false
}

// Tick folds one deviation sample into the error terms and returns the
// clamped command.
func (p *PID) Tick(deviation float64) (float64, error) {
	if !p.started {
		return 0, ErrNotStarted
	}

	p.terms.D = deviation - p.terms.P
	p.terms.P = deviation
	p.terms.I += deviation
	p.ticks++
	if p.ticks > p.warmup {
		p.accumulated += deviation * deviation
	}

	u := -(p.Kp*p.terms.P + p.Ki*p.terms.I + p.Kd*p.terms.D)
	return p.bounds.Clamp(u), nil
}

// AccumulatedError is the sum of squared deviations after warm-up for the
// current episode. Normalizing it is the caller's job.
func (p *PID) AccumulatedError() float64 {
	return p.accumulated
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":    p.Kp,
		"Ki":    p.Ki,
		"Kd":    p.Kd,
		"Lower": p.bounds.Lower,
		"Upper": p.bounds.Upper,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Lower":
		b := Bounds{Lower: value, Upper: p.bounds.Upper}
		if err := b.Validate(); err != nil {
			return err
		}
		p.bounds = b
	case "Upper":
		b := Bounds{Lower: p.bounds.Lower, Upper: value}
		if err := b.Validate(); err != nil {
			return err
		}
		p.bounds = b
	default:
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return nil
}

var _ dynamo.Configurable = (*PID)(nil)
