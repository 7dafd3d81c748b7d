// Package logs reads the service log for `cadence logs`.
//
// Last returns the trailing lines of a file with bounded memory. Follow
// polls for appended lines and starts over when the cadence.log pointer is
// moved to a new run's file or the file is truncated. Callers end follow
// mode by cancelling the context.
package logs
