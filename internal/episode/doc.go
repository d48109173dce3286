// Package episode drives a steer/throttle controller pair through one
// bounded run against a [Source].
//
// A Source stands in for whatever produces telemetry and consumes commands:
// the local vehicle simulator, or a remote one behind a network layer. The
// [Runner] calls Reset once, then Step once per tick until a stopping rule in
// [Limits] fires, and hands back the raw accumulated errors. Normalizing them
// is up to the search that consumes the [Result].
package episode
