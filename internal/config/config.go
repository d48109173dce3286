package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pidtune/internal/control"
	"github.com/san-kum/pidtune/internal/episode"
	"github.com/san-kum/pidtune/internal/optim"
	"github.com/san-kum/pidtune/internal/vehicle"
)

const (
	DefaultDt             = 0.1
	DefaultSetSpeed       = 35.0
	DefaultStartOffset    = 0.7598
	DefaultTwiddleTol     = 0.001
	DefaultGoldenRatio    = 0.01
	DefaultSweepTolerance = 0.001
)

// Controller names accepted by ControllerFor.
const (
	Steer    = "steer"
	Throttle = "throttle"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Plant    PlantConfig      `yaml:"plant"`
	Episode  EpisodeConfig    `yaml:"episode"`
	Steer    ControllerConfig `yaml:"steer"`
	Throttle ControllerConfig `yaml:"throttle"`
	Twiddle  TwiddleConfig    `yaml:"twiddle"`
	Golden   GoldenConfig     `yaml:"golden"`
}

type PlantConfig struct {
	Integrator     string  `yaml:"integrator"`
	Dt             float64 `yaml:"dt"`
	Wheelbase      float64 `yaml:"wheelbase"`
	MaxSteer       float64 `yaml:"max_steer"`
	MaxAccel       float64 `yaml:"max_accel"`
	Drag           float64 `yaml:"drag"`
	RoadAmplitude  float64 `yaml:"road_amplitude"`
	RoadWavelength float64 `yaml:"road_wavelength"`
	StartOffset    float64 `yaml:"start_offset"`
	StartSpeed     float64 `yaml:"start_speed"`
}

type EpisodeConfig struct {
	MaxSteps     int     `yaml:"max_steps"`
	MaxDistance  float64 `yaml:"max_distance"`
	MaxDeviation float64 `yaml:"max_deviation"`
	SetSpeed     float64 `yaml:"set_speed"`
	// FixedThrottle is used when the throttle controller is disabled.
	FixedThrottle float64 `yaml:"fixed_throttle"`
}

type ControllerConfig struct {
	Enabled bool      `yaml:"enabled"`
	Gains   []float64 `yaml:"gains"`
	Lower   float64   `yaml:"lower"`
	Upper   float64   `yaml:"upper"`
	Warmup  int       `yaml:"warmup"`
	// Steps are the initial coordinate search step sizes.
	Steps []float64 `yaml:"steps"`
	// Ranges are the per-gain golden-section search intervals.
	Ranges [][2]float64 `yaml:"ranges"`
}

type TwiddleConfig struct {
	Tolerance float64 `yaml:"tolerance"`
	MaxTrials int     `yaml:"max_trials"`
}

type GoldenConfig struct {
	// Ratio sets each bracket's tolerance as a fraction of its range width.
	Ratio          float64 `yaml:"ratio"`
	SweepTolerance float64 `yaml:"sweep_tolerance"`
	MaxTrials      int     `yaml:"max_trials"`
}

func DefaultConfig() *Config {
	return &Config{
		Plant: PlantConfig{
			Integrator:     "rk4",
			Dt:             DefaultDt,
			Wheelbase:      2.7,
			MaxSteer:       0.44,
			MaxAccel:       3.0,
			Drag:           0.05,
			RoadAmplitude:  2.0,
			RoadWavelength: 200.0,
			StartOffset:    DefaultStartOffset,
		},
		Episode: EpisodeConfig{
			MaxSteps:      2000,
			MaxDistance:   1.0,
			MaxDeviation:  2.0,
			SetSpeed:      DefaultSetSpeed,
			FixedThrottle: 0.3,
		},
		Steer: ControllerConfig{
			Enabled: true,
			Gains:   []float64{0.2, 0.004, 3.0},
			Lower:   -1,
			Upper:   1,
			Warmup:  200,
			Steps:   []float64{0.02, 0.002, 1.0},
			Ranges:  [][2]float64{{0.05, 1.0}, {0.0001, 0.005}, {1.0, 6.0}},
		},
		Throttle: ControllerConfig{
			Enabled: true,
			Gains:   []float64{0.1, 0.0001, -0.0274},
			Lower:   -1,
			Upper:   1,
			Warmup:  100,
			Steps:   []float64{0.2, 0.01, 1.0},
			Ranges:  [][2]float64{{0.01, 0.5}, {0, 0.001}, {-0.1, 0.1}},
		},
		Twiddle: TwiddleConfig{
			Tolerance: DefaultTwiddleTol,
		},
		Golden: GoldenConfig{
			Ratio:          DefaultGoldenRatio,
			SweepTolerance: DefaultSweepTolerance,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks everything the runtime constructors would reject, so a bad
// file fails at load time rather than mid-session.
func (c *Config) Validate() error {
	if !(c.Plant.Dt > 0) {
		return fmt.Errorf("%w: plant.dt %g", ErrInvalidConfig, c.Plant.Dt)
	}
	if err := c.Limits().Validate(); err != nil {
		return err
	}
	if !c.Steer.Enabled {
		return fmt.Errorf("%w: steer controller cannot be disabled", ErrInvalidConfig)
	}
	for name, cc := range map[string]ControllerConfig{Steer: c.Steer, Throttle: c.Throttle} {
		if err := cc.validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if !(c.Twiddle.Tolerance > 0) {
		return fmt.Errorf("%w: twiddle.tolerance %g", ErrInvalidConfig, c.Twiddle.Tolerance)
	}
	if !(c.Golden.Ratio > 0 && c.Golden.Ratio < 1) {
		return fmt.Errorf("%w: golden.ratio %g", ErrInvalidConfig, c.Golden.Ratio)
	}
	if !(c.Golden.SweepTolerance > 0) {
		return fmt.Errorf("%w: golden.sweep_tolerance %g", ErrInvalidConfig, c.Golden.SweepTolerance)
	}
	if c.Twiddle.MaxTrials < 0 || c.Golden.MaxTrials < 0 {
		return fmt.Errorf("%w: negative max_trials", ErrInvalidConfig)
	}
	return nil
}

func (cc ControllerConfig) validate() error {
	if _, err := control.NewPID(cc.Gains, cc.Bounds(), cc.Warmup); err != nil {
		return err
	}
	if len(cc.Steps) != len(cc.Gains) {
		return fmt.Errorf("%w: %d steps for %d gains", ErrInvalidConfig, len(cc.Steps), len(cc.Gains))
	}
	if len(cc.Ranges) != len(cc.Gains) {
		return fmt.Errorf("%w: %d ranges for %d gains", ErrInvalidConfig, len(cc.Ranges), len(cc.Gains))
	}
	for i, r := range cc.Ranges {
		if !(r[0] < r[1]) {
			return fmt.Errorf("%w: range %d [%g, %g]", ErrInvalidConfig, i, r[0], r[1])
		}
	}
	return nil
}

func (cc ControllerConfig) Bounds() control.Bounds {
	return control.Bounds{Lower: cc.Lower, Upper: cc.Upper}
}

// NewPID builds a controller from the configured gains.
func (cc ControllerConfig) NewPID() (*control.PID, error) {
	return control.NewPID(cc.Gains, cc.Bounds(), cc.Warmup)
}

func (cc ControllerConfig) SearchRanges() []optim.Range {
	out := make([]optim.Range, len(cc.Ranges))
	for i, r := range cc.Ranges {
		out[i] = optim.Range{Lo: r[0], Hi: r[1]}
	}
	return out
}

// ControllerFor returns the settings of the named controller.
func (c *Config) ControllerFor(name string) (ControllerConfig, error) {
	switch name {
	case Steer:
		return c.Steer, nil
	case Throttle:
		return c.Throttle, nil
	default:
		return ControllerConfig{}, fmt.Errorf("%w: unknown controller %q", ErrInvalidConfig, name)
	}
}

func (c *Config) Limits() episode.Limits {
	return episode.Limits{
		MaxSteps:      c.Episode.MaxSteps,
		MaxDistance:   c.Episode.MaxDistance,
		MaxDeviation:  c.Episode.MaxDeviation,
		SetSpeed:      c.Episode.SetSpeed,
		FixedThrottle: c.Episode.FixedThrottle,
		TickSeconds:   c.Plant.Dt,
	}
}

func (c *Config) Car() *vehicle.Car {
	return &vehicle.Car{
		Wheelbase: c.Plant.Wheelbase,
		MaxSteer:  c.Plant.MaxSteer,
		MaxAccel:  c.Plant.MaxAccel,
		Drag:      c.Plant.Drag,
	}
}

func (c *Config) Road() vehicle.Road {
	return vehicle.Road{Amplitude: c.Plant.RoadAmplitude, Wavelength: c.Plant.RoadWavelength}
}

func (c *Config) Start() vehicle.Start {
	return vehicle.Start{Offset: c.Plant.StartOffset, Speed: c.Plant.StartSpeed}
}
