package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/episode"
	"github.com/san-kum/pidtune/internal/experiment"
	"github.com/san-kum/pidtune/internal/optim"
	"github.com/san-kum/pidtune/internal/storage"
	"github.com/san-kum/pidtune/internal/tuner"
)

var ErrInvalidScenario = errors.New("automation: invalid scenario")

// Scenario is a batch of tuning jobs run one after another.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Jobs        []Job  `yaml:"jobs"`
}

// Job is one tuning run. Zero fields keep the preset's value.
type Job struct {
	Name      string             `yaml:"name"`
	Preset    string             `yaml:"preset"`
	Strategy  string             `yaml:"strategy"`
	Target    string             `yaml:"target"`
	MaxTrials int                `yaml:"max_trials"`
	Tolerance float64            `yaml:"tolerance"`
	Gains     []float64          `yaml:"gains"`
	Plant     map[string]float64 `yaml:"plant"`
}

// JobResult is the outcome of one job. Err holds a search that stopped
// early, such as one that hit its trial limit.
type JobResult struct {
	Job     string
	Session string
	Outcome *tuner.Outcome
	Err     error
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if len(s.Jobs) == 0 {
		return fmt.Errorf("%w: no jobs", ErrInvalidScenario)
	}
	for i, j := range s.Jobs {
		switch tuner.Strategy(j.Strategy) {
		case tuner.Twiddle, tuner.Golden:
		default:
			return fmt.Errorf("%w: job %d: unknown strategy %q", ErrInvalidScenario, i+1, j.Strategy)
		}
		if _, err := tuner.ParseTarget(j.target()); err != nil {
			return fmt.Errorf("%w: job %d: %v", ErrInvalidScenario, i+1, err)
		}
		if j.MaxTrials < 0 || j.Tolerance < 0 {
			return fmt.Errorf("%w: job %d: negative limit", ErrInvalidScenario, i+1)
		}
	}
	return nil
}

func (j Job) target() string {
	if j.Target == "" {
		return config.Steer
	}
	return j.Target
}

func (j Job) label(i int) string {
	if j.Name != "" {
		return j.Name
	}
	return fmt.Sprintf("job-%d", i+1)
}

// Config builds the job's configuration from its preset and overrides.
// Plant overrides go through the car's parameter checks.
func (j Job) Config() (*config.Config, error) {
	preset := j.Preset
	if preset == "" {
		preset = "default"
	}
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s", preset)
	}

	car := cfg.Car()
	for k, v := range j.Plant {
		if err := car.SetParam(k, v); err != nil {
			return nil, err
		}
	}
	cfg.Plant.Wheelbase = car.Wheelbase
	cfg.Plant.MaxSteer = car.MaxSteer
	cfg.Plant.MaxAccel = car.MaxAccel
	cfg.Plant.Drag = car.Drag

	if j.MaxTrials > 0 {
		cfg.Twiddle.MaxTrials = j.MaxTrials
		cfg.Golden.MaxTrials = j.MaxTrials
	}
	if j.Tolerance > 0 {
		cfg.Twiddle.Tolerance = j.Tolerance
		cfg.Golden.SweepTolerance = j.Tolerance
	}
	if len(j.Gains) > 0 {
		gains := append([]float64(nil), j.Gains...)
		if j.target() == config.Throttle {
			cfg.Throttle.Gains = gains
		} else {
			cfg.Steer.Gains = gains
		}
	}
	return cfg, cfg.Validate()
}

// RunScenario executes all jobs in a scenario. When store is non-nil every
// job records a session. A job that cannot be set up aborts the scenario;
// a search that stops early is reported in its JobResult.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, store *storage.Store, logger *slog.Logger) ([]JobResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if store != nil {
		if err := store.Init(); err != nil {
			return nil, err
		}
	}

	results := make([]JobResult, 0, len(scenario.Jobs))
	for i, job := range scenario.Jobs {
		name := job.label(i)
		logger.Info("running job", "job", name, "n", i+1, "of", len(scenario.Jobs),
			"strategy", job.Strategy, "target", job.target())

		res, err := runJob(ctx, job, name, registry, store, logger)
		if err != nil {
			return results, fmt.Errorf("job %d: %w", i+1, err)
		}
		results = append(results, res)

		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			return results, res.Err
		}
	}
	return results, nil
}

func runJob(ctx context.Context, job Job, name string, registry *experiment.Registry, store *storage.Store, logger *slog.Logger) (JobResult, error) {
	cfg, err := job.Config()
	if err != nil {
		return JobResult{}, err
	}
	exp, err := experiment.New(cfg, registry)
	if err != nil {
		return JobResult{}, err
	}

	strategy := tuner.Strategy(job.Strategy)
	target, err := tuner.ParseTarget(job.target())
	if err != nil {
		return JobResult{}, err
	}
	cc, err := cfg.ControllerFor(string(target))
	if err != nil {
		return JobResult{}, err
	}

	opts := tuner.Options{Target: target, Logger: logger.With("job", name)}
	if strategy == tuner.Twiddle {
		opts.MaxTrials = cfg.Twiddle.MaxTrials
	} else {
		opts.MaxTrials = cfg.Golden.MaxTrials
	}

	res := JobResult{Job: name}
	if store != nil {
		sess, err := store.Create(storage.Metadata{
			Strategy:     string(strategy),
			Target:       string(target),
			Preset:       job.Preset,
			InitialGains: cc.Gains,
			Params:       job.Plant,
		})
		if err != nil {
			return JobResult{}, err
		}
		defer sess.Close()
		res.Session = sess.ID()
		opts.Recorder = sess
	}

	s, err := exp.Session(opts)
	if err != nil {
		return JobResult{}, err
	}
	if strategy == tuner.Twiddle {
		res.Outcome, res.Err = s.Twiddle(ctx, cc.Steps, cfg.Twiddle.Tolerance)
	} else {
		res.Outcome, res.Err = s.Golden(ctx, cc.SearchRanges(), cfg.Golden.Ratio, cfg.Golden.SweepTolerance)
	}
	return res, nil
}

// MonteCarloConfig perturbs the car's starting point to check how well a
// set of gains holds up away from the tuning conditions.
type MonteCarloConfig struct {
	Trials       int
	OffsetSpread float64
	SpeedSpread  float64
	Seed         int64
}

// MonteCarloResult holds one perturbed episode.
type MonteCarloResult struct {
	TrialID  int
	Offset   float64
	Speed    float64
	Reason   episode.StopReason
	Distance float64
	Error    float64
	Err      error
}

// OnTrack reports whether the car finished without leaving the lane.
func (r MonteCarloResult) OnTrack() bool {
	return r.Err == nil && (r.Reason == episode.StopDistance || r.Reason == episode.StopSteps)
}

// RunMonteCarlo drives one episode per trial with the configured gains,
// drawing the start offset and speed uniformly around the configured start.
func RunMonteCarlo(ctx context.Context, base *config.Config, registry *experiment.Registry, mc *MonteCarloConfig) ([]MonteCarloResult, error) {
	if mc.Trials <= 0 {
		return nil, fmt.Errorf("%w: %d monte carlo trials", ErrInvalidScenario, mc.Trials)
	}

	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	results := make([]MonteCarloResult, 0, mc.Trials)
	for trial := 0; trial < mc.Trials; trial++ {
		cfg := *base
		cfg.Plant.StartOffset = base.Plant.StartOffset + (rng.Float64()-0.5)*2*mc.OffsetSpread
		cfg.Plant.StartSpeed = max(0, base.Plant.StartSpeed+(rng.Float64()-0.5)*2*mc.SpeedSpread)

		exp, err := experiment.New(&cfg, registry)
		if err != nil {
			return results, err
		}

		r := MonteCarloResult{TrialID: trial, Offset: cfg.Plant.StartOffset, Speed: cfg.Plant.StartSpeed}
		res, err := exp.Run(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results, ctxErr
		}
		if res != nil {
			r.Reason = res.Reason
			r.Distance = res.Distance
			r.Error = optim.DistanceNormalized(res.SteerError, res.Distance, res.SteerWarmup, res.Steps)
		}
		r.Err = err
		results = append(results, r)
	}

	return results, nil
}

// MonteCarloStats counts trials that stayed on the road.
func MonteCarloStats(results []MonteCarloResult) (onTrack int, offTrack int) {
	for _, r := range results {
		if r.OnTrack() {
			onTrack++
		} else {
			offTrack++
		}
	}
	return
}
