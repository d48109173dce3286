package vehicle

import (
	"fmt"
	"math"

	"github.com/san-kum/pidtune/internal/dynamo"
)

// MetersPerSecondToMPH converts plant speed into telemetry units.
const MetersPerSecondToMPH = 2.23694

// Car is a kinematic bicycle model.
//
// State: [x, y, heading, speed] in m, m, rad, m/s.
// Control: [steer, throttle], both normalized to [-1, 1]. Steer scales
// MaxSteer; negative throttle brakes.
type Car struct {
	Wheelbase float64
	MaxSteer  float64
	MaxAccel  float64
	Drag      float64
}

func NewCar() *Car {
	return &Car{
		Wheelbase: 2.7,
		MaxSteer:  0.44,
		MaxAccel:  3.0,
		Drag:      0.05,
	}
}

func (c *Car) StateDim() int {
	return 4
}

func (c *Car) ControlDim() int {
	return 2
}

func (c *Car) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	heading := x[2]
	v := x[3]

	steer, throttle := 0.0, 0.0
	if len(u) > 0 {
		steer = clampUnit(u[0])
	}
	if len(u) > 1 {
		throttle = clampUnit(u[1])
	}

	accel := throttle*c.MaxAccel - c.Drag*v
	if v <= 0 && accel < 0 {
		accel = 0
	}

	return dynamo.State{
		v * math.Cos(heading),
		v * math.Sin(heading),
		v / c.Wheelbase * math.Tan(c.MaxSteer*steer),
		accel,
	}
}

func (c *Car) GetParams() map[string]float64 {
	return map[string]float64{
		"wheelbase": c.Wheelbase,
		"max_steer": c.MaxSteer,
		"max_accel": c.MaxAccel,
		"drag":      c.Drag,
	}
}

func (c *Car) SetParam(name string, value float64) error {
	if value < 0 || math.IsNaN(value) {
		return fmt.Errorf("%w: %s = %g", dynamo.ErrParameterBounds, name, value)
	}
	switch name {
	case "wheelbase":
		if value == 0 {
			return fmt.Errorf("%w: wheelbase must be positive", dynamo.ErrParameterBounds)
		}
		c.Wheelbase = value
	case "max_steer":
		if value >= math.Pi/2 {
			return fmt.Errorf("%w: max_steer %g", dynamo.ErrParameterBounds, value)
		}
		c.MaxSteer = value
	case "max_accel":
		c.MaxAccel = value
	case "drag":
		c.Drag = value
	default:
		return fmt.Errorf("vehicle: unknown parameter %s", name)
	}
	return nil
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

var (
	_ dynamo.System       = (*Car)(nil)
	_ dynamo.Configurable = (*Car)(nil)
)

// Road is a lane centre line y = Amplitude * sin(2*pi*x / Wavelength).
type Road struct {
	Amplitude  float64
	Wavelength float64
}

func (r Road) Y(x float64) float64 {
	if r.Wavelength == 0 {
		return 0
	}
	return r.Amplitude * math.Sin(2*math.Pi*x/r.Wavelength)
}

// Heading is the direction of the centre line at x.
func (r Road) Heading(x float64) float64 {
	if r.Wavelength == 0 {
		return 0
	}
	k := 2 * math.Pi / r.Wavelength
	return math.Atan(r.Amplitude * k * math.Cos(k*x))
}
