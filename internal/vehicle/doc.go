// Package vehicle is a simulated car for running tuning episodes without the
// network simulator. Car is a kinematic bicycle model; SimSource integrates it
// along a sinusoidal road and reports cross-track deviation and speed.
package vehicle
