// Package transcode supervises the external ffmpeg process that converts a
// staged upload into the configured audio output.
//
// Start launches one process per job and returns a Handle whose Done channel
// resolves exactly once with the Outcome. Cancel terminates the process and
// removes any partial output, so a canceled or failed conversion never leaves
// a readable artifact behind. Engine diagnostics stay internal: callers get a
// summarized message from Summarize, never raw stderr.
//
// Probe runs ffprobe ahead of conversion when input probing is enabled, so
// uploads without an audio stream fail fast with a validation error instead
// of an opaque engine failure.
package transcode
