// Package tuner runs gain searches against episodes.
//
// A Session owns one steering and one optional throttle controller. Twiddle
// drives a coordinate search and Golden a per-gain golden-section sweep on the
// targeted controller's gains. Every episode becomes a Trial that is logged,
// counted in prometheus, recorded to storage and passed to observers.
package tuner
