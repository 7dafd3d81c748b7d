// Package preflight provides readiness checks for the filesystem paths and
// external binaries cadence depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before it starts accepting uploads and refuses
//     to start when a required check fails.
//   - The CLI "cadence status" command and the /api/status endpoint report the
//     same results so operators see why conversions would fail.
package preflight
