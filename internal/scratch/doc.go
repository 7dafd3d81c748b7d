// Package scratch owns the temporary directory that holds every upload and
// every converted output.
//
// A Manager allocates collision-free paths (a millisecond timestamp plus a
// random UUID behind a caller prefix), creates files exclusively, deletes
// idempotently, and reaps files no live job claims once they pass an age
// bound. Managers are constructed per process and injected; nothing in this
// package keeps global state, so tests point a Manager at t.TempDir().
package scratch
