package metrics

import (
	"math"

	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/dynamo"
)

// OnTrack is the fraction of ticks whose deviation (state component 0)
// stays within threshold.
type OnTrack struct {
	threshold  float64
	violations int
	samples    int
}

func NewOnTrack(threshold float64) *OnTrack {
	return &OnTrack{threshold: threshold}
}

func (s *OnTrack) Name() string {
	return "on_track"
}

func (s *OnTrack) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if len(x) > 0 && math.Abs(x[0]) > s.threshold {
		s.violations++
	}
}

func (s *OnTrack) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *OnTrack) Reset() {
	s.violations = 0
	s.samples = 0
}

// Saturation is the fraction of ticks a control channel spent pinned at one
// of its output bounds.
type Saturation struct {
	name      string
	channel   int
	bounds    control.Bounds
	saturated int
	samples   int
}

func NewSaturation(name string, channel int, bounds control.Bounds) *Saturation {
	return &Saturation{name: name, channel: channel, bounds: bounds}
}

func (s *Saturation) Name() string {
	return s.name
}

func (s *Saturation) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if s.channel < len(u) && (u[s.channel] <= s.bounds.Lower || u[s.channel] >= s.bounds.Upper) {
		s.saturated++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}
