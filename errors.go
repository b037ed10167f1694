// Package shada implements the ShaDa (shared data) persistence core: a
// binary record codec, a set of per-category mergers, and the read/write
// orchestrators that reconcile on-disk state with a live editor session.
//
// The package does not know how to talk to an editor directly — it is
// handed an Editor implementation (editor.go) and drives it through
// the abstract producer/consumer surface described by that interface.
package shada

import "errors"

// Sentinel errors returned by the package. Each corresponds to one of
// the error kinds in the format's error taxonomy; callers that need the
// neovim-style numeric code can look it up with Code.
var (
	// ErrNotShaDa is returned when the first record in a file fails the
	// "is this a ShaDa file?" heuristic, or when a read hits EOF somewhere
	// other than a record boundary. Write treats this as "merge nothing,
	// but do not rename over the target".
	ErrNotShaDa = errors.New("shada: not a shada file")

	// ErrIgnorableWrite is returned for a single value that could not be
	// serialized (a cyclic container, or a value kind the format has no
	// representation for). The record is skipped; the write continues.
	ErrIgnorableWrite = errors.New("shada: value not representable, skipped")

	// ErrTempExhausted is returned when every candidate temp suffix
	// (.tmp.a through .tmp.z) is already taken.
	ErrTempExhausted = errors.New("shada: all temp file suffixes are in use")

	// ErrTargetNotWritable is returned when the temp file was written
	// successfully but the target cannot be renamed over (wrong owner,
	// read-only filesystem, etc). The temp file is left in place.
	ErrTargetNotWritable = errors.New("shada: target file is not writable, temp file left in place")

	// ErrMalformed marks a single record as unreadable. It never escapes
	// to the caller of Read/Write — the driver catches it, drops the
	// record, and continues with the next one.
	ErrMalformed = errors.New("shada: malformed record")
)

// Code returns the neovim-style numeric error code associated with err,
// or "" if err does not match one of the package's sentinels. This is
// cosmetic — it exists so callers building a user-facing message can
// match the messages the format's error taxonomy documents.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotShaDa):
		return "E576"
	case errors.Is(err, ErrIgnorableWrite):
		return "E574"
	case errors.Is(err, ErrTempExhausted):
		return "E138"
	case errors.Is(err, ErrTargetNotWritable):
		return "E137"
	case errors.Is(err, ErrMalformed):
		return "E575"
	default:
		return ""
	}
}
