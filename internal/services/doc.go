// Package services defines shared utilities consumed by the job pipeline and
// the HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and correlation identifiers for
//     logging.
//   - Structured error markers, the Wrap helper, and KindOf, which classify
//     failures into the persisted failure kinds.
//   - PublicError, which keeps engine output and filesystem paths out of the
//     reasons handed to untrusted callers.
package services
