package episode

import "context"

// Telemetry is one observation from the actuated system.
type Telemetry struct {
	// Deviation is the signed cross-track error.
	Deviation float64
	// Speed is in miles per hour.
	Speed float64
}

// Command is the actuation sent back for one tick.
type Command struct {
	Steer    float64
	Throttle float64
}

// Source produces telemetry and consumes commands. Reset is the reset signal:
// it puts the system back at its starting point and returns the first
// observation.
type Source interface {
	Reset(ctx context.Context) (Telemetry, error)
	Step(ctx context.Context, cmd Command) (Telemetry, error)
}

// Observer is notified after every tick.
type Observer interface {
	OnTick(step int, tel Telemetry, cmd Command)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(step int, tel Telemetry, cmd Command)

func (f ObserverFunc) OnTick(step int, tel Telemetry, cmd Command) { f(step, tel, cmd) }
