// Package jobstore keeps a SQLite history of conversion jobs.
//
// The in-memory jobs.Manager is authoritative for live jobs; this package
// only records what happened so operators can list past jobs after the fact
// and so a restart can mark interrupted work as failed. Records are written
// through Recorder, which observes manager transitions and relies on the
// revision column to ignore stale snapshots.
//
// Schema changes bump schemaVersion in schema.go. History is disposable;
// operators delete jobs.db to adopt a new schema.
package jobstore
