package tuner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/episode"
	"github.com/san-kum/pidtune/internal/metrics"
	"github.com/san-kum/pidtune/internal/storage"
)

var (
	// ErrTrialLimit is returned when a search gives up after MaxTrials
	// episodes without converging.
	ErrTrialLimit = errors.New("tuner: trial limit reached")

	// ErrNoController indicates the targeted controller was not supplied.
	ErrNoController = errors.New("tuner: controller not configured")

	// ErrUnknownTarget indicates a target other than steer or throttle.
	ErrUnknownTarget = errors.New("tuner: unknown target")
)

type Strategy string

const (
	Twiddle Strategy = "twiddle"
	Golden  Strategy = "golden"
)

// Target selects which controller's gains a search tunes.
type Target string

const (
	Steer    Target = "steer"
	Throttle Target = "throttle"
)

func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case Steer, Throttle:
		return Target(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
}

var gainNames = [control.NumGains]string{"kp", "ki", "kd"}

// EpisodeRunner runs one episode with the given controllers. *episode.Runner
// satisfies it.
type EpisodeRunner interface {
	Run(ctx context.Context, steer, throttle *control.PID) (*episode.Result, error)
}

// Recorder persists trials. *storage.Session satisfies it.
type Recorder interface {
	Append(storage.Trial) error
	Finish(storage.Summary) error
}

// Trial is one evaluated gain vector.
type Trial struct {
	N        int
	Strategy Strategy
	Target   Target
	// Phase is the search phase that requested the episode.
	Phase     string
	Gains     dynamo.Vector
	Error     float64
	RawError  float64
	BestError float64
	// Progress is the step-size norm for twiddle and the bracket width for
	// golden.
	Progress float64
	Result   *episode.Result
	Failed   bool
}

func (t Trial) Record() storage.Trial {
	rec := storage.Trial{
		N:         t.N,
		Phase:     t.Phase,
		Gains:     t.Gains.Clone(),
		Error:     t.Error,
		RawError:  t.RawError,
		BestError: t.BestError,
	}
	if t.Result != nil {
		rec.Steps = t.Result.Steps
		rec.Distance = t.Result.Distance
		rec.Reason = string(t.Result.Reason)
	}
	if t.Failed {
		rec.Reason = "failed"
	}
	return rec
}

type Observer interface {
	OnTrial(Trial)
}

type ObserverFunc func(Trial)

func (f ObserverFunc) OnTrial(t Trial) { f(t) }

// Outcome summarizes a search. Gains are the best gains evaluated, which are
// also left installed in the tuned controller.
type Outcome struct {
	Strategy  Strategy
	Target    Target
	Gains     dynamo.Vector
	BestError float64
	Trials    int
	Converged bool
	Elapsed   time.Duration
}

type Options struct {
	Target Target
	// MaxTrials caps the episodes one search may run. Zero means no cap.
	MaxTrials int
	Logger    *slog.Logger
	Recorder  Recorder
	Observers []Observer
}

// Session tunes one controller. It is not safe for concurrent use.
type Session struct {
	runner    EpisodeRunner
	steer     *control.PID
	throttle  *control.PID
	target    Target
	maxTrials int
	logger    *slog.Logger
	recorder  Recorder
	observers []Observer

	strategy  Strategy
	trials    int
	best      float64
	bestGains dynamo.Vector
}

func New(runner EpisodeRunner, steer, throttle *control.PID, opts Options) (*Session, error) {
	if runner == nil || steer == nil {
		return nil, fmt.Errorf("%w: runner and steering controller required", ErrNoController)
	}
	if opts.Target == "" {
		opts.Target = Steer
	}
	if _, err := ParseTarget(string(opts.Target)); err != nil {
		return nil, err
	}
	if opts.Target == Throttle && throttle == nil {
		return nil, fmt.Errorf("%w: throttle", ErrNoController)
	}
	if opts.MaxTrials < 0 {
		return nil, fmt.Errorf("tuner: negative trial limit %d", opts.MaxTrials)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Session{
		runner:    runner,
		steer:     steer,
		throttle:  throttle,
		target:    opts.Target,
		maxTrials: opts.MaxTrials,
		logger:    logger.With("target", string(opts.Target)),
		recorder:  opts.Recorder,
		observers: opts.Observers,
	}, nil
}

func (s *Session) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Session) Target() Target { return s.target }

// Controller returns the controller being tuned.
func (s *Session) Controller() *control.PID {
	if s.target == Throttle {
		return s.throttle
	}
	return s.steer
}

func (s *Session) begin(strategy Strategy) {
	s.strategy = strategy
	s.trials = 0
	s.best = math.Inf(1)
	s.bestGains = s.Controller().Gains()
	s.logger.Info("search starting",
		"strategy", string(strategy),
		"gains", s.bestGains.String(),
		"max_trials", s.maxTrials,
	)
}

// episode installs gains and runs one episode. A plant that diverges is a
// failed trial rather than a session error.
func (s *Session) episode(ctx context.Context, gains dynamo.Vector) (*episode.Result, bool, error) {
	if s.maxTrials > 0 && s.trials >= s.maxTrials {
		return nil, false, fmt.Errorf("%w: %d", ErrTrialLimit, s.maxTrials)
	}
	if err := s.Controller().SetGains(gains); err != nil {
		return nil, false, err
	}
	s.trials++

	res, err := s.runner.Run(ctx, s.steer, s.throttle)
	if err != nil {
		if errors.Is(err, dynamo.ErrInvalidState) && ctx.Err() == nil {
			s.logger.Warn("episode diverged", "trial", s.trials, "gains", gains.String(), "error", err)
			return res, true, nil
		}
		return nil, false, fmt.Errorf("trial %d: %w", s.trials, err)
	}

	metrics.EpisodesTotal.WithLabelValues(string(s.strategy), string(s.target), string(res.Reason)).Inc()
	metrics.EpisodeSteps.WithLabelValues(string(s.strategy), string(s.target)).Observe(float64(res.Steps))
	return res, false, nil
}

// rawError picks the targeted controller's accumulated error and warm-up.
func (s *Session) rawError(res *episode.Result) (float64, int) {
	if s.target == Throttle {
		return res.ThrottleError, res.ThrottleWarmup
	}
	return res.SteerError, res.SteerWarmup
}

func (s *Session) emit(t Trial) {
	if t.Error < s.best {
		s.best = t.Error
		s.bestGains = t.Gains.Clone()
	}
	t.N = s.trials
	t.Strategy = s.strategy
	t.Target = s.target
	t.BestError = s.best

	metrics.TrialError.WithLabelValues(string(s.strategy), string(s.target)).Observe(t.Error)
	metrics.BestError.WithLabelValues(string(s.strategy), string(s.target)).Set(s.best)

	s.logger.Debug("trial",
		"n", t.N,
		"phase", t.Phase,
		"gains", t.Gains.String(),
		"error", t.Error,
		"best", t.BestError,
	)

	if s.recorder != nil {
		if err := s.recorder.Append(t.Record()); err != nil {
			s.logger.Warn("failed to record trial", "n", t.N, "error", err)
		}
	}
	for _, o := range s.observers {
		o.OnTrial(t)
	}
}

// finish installs the best gains and closes out the search. err is returned
// unchanged so callers can `return s.finish(...)`.
func (s *Session) finish(start time.Time, converged bool, err error) (*Outcome, error) {
	if setErr := s.Controller().SetGains(s.bestGains); setErr != nil && err == nil {
		err = setErr
	}

	out := &Outcome{
		Strategy:  s.strategy,
		Target:    s.target,
		Gains:     s.bestGains.Clone(),
		BestError: s.best,
		Trials:    s.trials,
		Converged: converged,
		Elapsed:   time.Since(start),
	}

	if converged {
		metrics.SearchesConverged.WithLabelValues(string(s.strategy), string(s.target)).Inc()
	}
	if s.recorder != nil {
		sum := storage.Summary{FinalGains: out.Gains, BestError: out.BestError, Trials: out.Trials, Converged: converged}
		if ferr := s.recorder.Finish(sum); ferr != nil {
			s.logger.Warn("failed to finish session record", "error", ferr)
		}
	}

	attrs := []any{
		"strategy", string(s.strategy),
		"gains", out.Gains.String(),
		"best_error", out.BestError,
		"trials", out.Trials,
		"converged", converged,
		"elapsed", out.Elapsed,
	}
	if err != nil {
		s.logger.Warn("search stopped", append(attrs, "error", err)...)
	} else {
		s.logger.Info("search finished", attrs...)
	}
	return out, err
}
