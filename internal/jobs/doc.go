// Package jobs implements the conversion job lifecycle: admission, staging,
// supervised conversion, single-use delivery and retention.
//
// A job moves through validating, staged, converting, ready and finally
// delivered or failed. Transitions only move forward and are enforced by a
// fixed table. Each staged job runs on its own goroutine that waits for a
// conversion slot, starts the engine under the conversion timeout and reacts
// to the engine's outcome message. Every failure path deletes the job's
// artifacts before the job is recorded as failed; the ready transition
// deletes the input first.
//
// Retrieve is the only way to read an output. It flips the job to delivered
// before opening the file, so an output is served at most once, and the
// returned Artifact deletes the file when closed whether or not the client
// read all of it.
package jobs
