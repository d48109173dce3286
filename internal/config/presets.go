package config

import "sort"

// Presets are named road and episode setups. Each is a full Config.
var Presets = map[string]func() *Config{
	"default": DefaultConfig,
	"straight": func() *Config {
		cfg := DefaultConfig()
		cfg.Plant.RoadAmplitude = 0
		return cfg
	},
	"winding": func() *Config {
		cfg := DefaultConfig()
		cfg.Plant.RoadAmplitude = 3
		cfg.Plant.RoadWavelength = 150
		cfg.Episode.SetSpeed = 25
		cfg.Episode.FixedThrottle = 0.2
		return cfg
	},
	"quick": func() *Config {
		cfg := DefaultConfig()
		cfg.Episode.MaxDistance = 0.25
		cfg.Steer.Warmup = 50
		cfg.Throttle.Warmup = 25
		cfg.Twiddle.Tolerance = 0.01
		cfg.Golden.Ratio = 0.05
		return cfg
	},
	"euler": func() *Config {
		cfg := DefaultConfig()
		cfg.Plant.Integrator = "euler"
		return cfg
	},
}

func GetPreset(name string) *Config {
	if p, ok := Presets[name]; ok {
		return p()
	}
	return nil
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
