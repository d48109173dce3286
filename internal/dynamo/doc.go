// Package dynamo provides the shared primitives for simulated plants and
// episode diagnostics.
//
//   - [State]: vector representing plant state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator interface
//   - [Metric]: per-tick observer that reduces an episode to one number
//
// # Example
//
//	car := vehicle.New(vehicle.DefaultParams())
//	integ := integrators.NewRK4()
//	x = integ.Step(car, x, dynamo.Control{steer, throttle}, t, dt)
//
// # Thread Safety
//
// Nothing in this package locks. Integrators keep scratch buffers and must
// not be shared between goroutines.
package dynamo
