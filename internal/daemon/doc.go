// Package daemon hosts the long-running cadence service.
//
// A Daemon ties the job manager, the job history store and the HTTP API into
// one lifecycle guarded by a flock single-instance lock in the state
// directory. Start marks jobs left unfinished by a previous process as
// interrupted, runs a startup sweep, launches the periodic retention sweeper
// and opens the listener. Stop reverses that order and fails every job that
// has not been delivered, so no scratch file outlives the process.
//
// Keep orchestration here; conversion semantics live in internal/jobs.
package daemon
