package tuner

import (
	"context"
	"time"

	"github.com/san-kum/pidtune/internal/metrics"
	"github.com/san-kum/pidtune/internal/optim"
)

// Golden tunes the target controller with a golden-section sweep over the
// given per-gain ranges. Each episode error is the square root of the
// accumulated error divided by the distance covered. Episodes that end
// before the controller's warm-up are failed trials.
func (s *Session) Golden(ctx context.Context, ranges []optim.Range, ratio, sweepTolerance float64) (*Outcome, error) {
	sweep, err := optim.NewGainSweep(s.Controller().Gains(), ranges, ratio, sweepTolerance)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s.begin(Golden)

	for {
		if err := ctx.Err(); err != nil {
			return s.finish(start, false, err)
		}

		gains := sweep.Probe()
		idx := sweep.Index()
		phase := sweep.Bracket().Phase()

		res, failed, err := s.episode(ctx, gains)
		if err != nil {
			return s.finish(start, false, err)
		}

		raw, e := 0.0, optim.FailureError
		if !failed {
			var warmup int
			raw, warmup = s.rawError(res)
			e = optim.DistanceNormalized(raw, res.Distance, warmup, res.Steps)
			failed = res.Steps <= warmup
		}

		done, err := sweep.Report(e)
		if err != nil {
			return s.finish(start, false, err)
		}

		width := sweep.Bracket().Width()
		metrics.BracketWidth.WithLabelValues(string(s.target), gainNames[idx]).Set(width)
		s.emit(Trial{
			Phase:    gainNames[idx] + ":" + phase.String(),
			Gains:    gains,
			Error:    e,
			RawError: raw,
			Progress: width,
			Result:   res,
			Failed:   failed,
		})

		if done {
			return s.finish(start, true, nil)
		}
	}
}
