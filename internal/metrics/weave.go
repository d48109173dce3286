package metrics

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// Weave is the dominant frequency, in Hz, of the lane deviation over an
// episode. A well-damped steering controller keeps it low; a controller
// with too much kp weaves at a higher rate.
type Weave struct {
	samples []float64
	first   float64
	last    float64
}

func NewWeave() *Weave {
	return &Weave{}
}

func (w *Weave) Name() string {
	return "weave_hz"
}

func (w *Weave) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) == 0 {
		return
	}
	if len(w.samples) == 0 {
		w.first = t
	}
	w.last = t
	w.samples = append(w.samples, x[0])
}

func (w *Weave) Value() float64 {
	n := len(w.samples)
	if n < 4 || w.last <= w.first {
		return 0
	}
	dt := (w.last - w.first) / float64(n-1)

	mean := 0.0
	for _, v := range w.samples {
		mean += v
	}
	mean /= float64(n)
	centered := make([]float64, n)
	for i, v := range w.samples {
		centered[i] = v - mean
	}

	spectrum := fft.FFTReal(centered)
	peak, peakMag := 0, 0.0
	for k := 1; k <= n/2; k++ {
		if mag := cmplx.Abs(spectrum[k]); mag > peakMag {
			peak, peakMag = k, mag
		}
	}
	if peakMag < 1e-9*math.Sqrt(float64(n)) {
		return 0
	}
	return float64(peak) / (float64(n) * dt)
}

func (w *Weave) Reset() {
	w.samples = w.samples[:0]
	w.first, w.last = 0, 0
}
