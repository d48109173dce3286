package tuner

import (
	"context"
	"time"

	"github.com/san-kum/pidtune/internal/metrics"
	"github.com/san-kum/pidtune/internal/optim"
)

// Twiddle tunes the target controller with a coordinate search starting from
// its current gains. Each episode error is the post-warm-up accumulated
// error divided by the steps run after warm-up.
func (s *Session) Twiddle(ctx context.Context, steps []float64, tolerance float64) (*Outcome, error) {
	search, err := optim.NewCoordinateSearch(s.Controller().Gains(), steps, tolerance)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s.begin(Twiddle)

	for {
		if err := ctx.Err(); err != nil {
			return s.finish(start, false, err)
		}

		var trial *Trial
		if search.AwaitingError() {
			phase := search.Phase()
			gains := search.Gains()
			res, failed, err := s.episode(ctx, gains)
			if err != nil {
				return s.finish(start, false, err)
			}

			raw, warmup, ran := 0.0, 0, 0
			if !failed {
				raw, warmup = s.rawError(res)
				ran = res.Steps
			}
			search.SetError(raw, warmup, ran)
			failed = failed || ran <= warmup
			trial = &Trial{Phase: phase.String(), Gains: gains, Error: search.LastError(), RawError: raw, Result: res, Failed: failed}
		}

		done, err := search.Update()
		if err != nil {
			return s.finish(start, false, err)
		}
		metrics.StepSizeNorm.WithLabelValues(string(s.target)).Set(search.StepNorm())

		if trial != nil {
			trial.Progress = search.StepNorm()
			s.emit(*trial)
		}
		if done {
			return s.finish(start, true, nil)
		}
	}
}
