// Package health holds the checks behind the liveness and readiness
// endpoints of both listeners.
//
// The public server is ready once the Live site version has a snapshot and
// the [Gate] has not been drained. [All] combines the two.
package health
