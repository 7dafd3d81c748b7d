// Package upload enforces the admission rules for submitted media: a single
// accepted MIME type and a byte limit that is checked while the body streams,
// not only once it has been written.
package upload
