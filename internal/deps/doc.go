// Package deps reports whether the external binaries cadence shells out to
// (ffmpeg and, when input probing is enabled, ffprobe) are installed, and
// which version each one reports.
package deps
