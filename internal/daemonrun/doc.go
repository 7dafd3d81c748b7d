// Package daemonrun bootstraps the cadence service process: per-run log
// files, preflight checks, the job store, the job manager and the daemon.
package daemonrun
