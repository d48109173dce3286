// Package control provides the incremental feedback controller used by the
// episode runner and the gain searches.
//
//   - [PID]: Proportional-Integral-Derivative controller with output clamping
//
// # Usage
//
//	pid, err := control.NewPID([]float64{0.2, 0.004, 3.0}, control.Bounds{Lower: -1, Upper: 1}, 100)
//	pid.Start(cte)
//	for {
//		steer, err := pid.Tick(cte) // once per tick
//	}
//	raw := pid.AccumulatedError()
//
// PID implements [dynamo.Configurable] for live tuning.
package control
