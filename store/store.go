// Package store defines the storage backend contract for cache entries.
//
// A backend stores entries addressed by (function name, key). Entries are
// built under a private staging location and published with a single
// indivisible operation; a reader must never observe a partially written
// entry as valid. The local filesystem implementation lives in the disk
// subpackage; alternative backends must supply an equivalent indivisible
// publish primitive.
package store

import "errors"

// Sentinel errors.
var (
	// ErrConflict is returned by Staging.Commit when the published path is
	// already occupied: another writer won a same-key race. The staged
	// entry is discarded, never merged or adopted.
	ErrConflict = errors.New("store: entry already published by another writer")

	// ErrCorrupt marks a published entry whose contents cannot be read
	// back despite a present completion marker.
	ErrCorrupt = errors.New("store: corrupt entry")
)

// Status classifies a published address during lookup.
type Status int

const (
	// StatusAbsent means nothing exists at the published address.
	StatusAbsent Status = iota

	// StatusInvalid means something exists but lacks the completion
	// marker — a leftover from a crashed writer. It must be treated as a
	// miss and may be removed before retrying.
	StatusInvalid

	// StatusValid means a committed entry exists.
	StatusValid
)

// Store is a cache entry backend. Implementations must be safe for
// concurrent use by callers operating on distinct keys; same-key write
// races are resolved at Commit time via ErrConflict.
type Store interface {
	// Lookup reports the state of the published address for (fn, key).
	// The Entry is non-nil only for StatusValid.
	Lookup(fn, key string) (Entry, Status, error)

	// Stage opens a private staging location for a new (fn, key) entry.
	// Multiple stagings for the same key may coexist; at most one commits.
	Stage(fn, key string) (Staging, error)

	// Remove deletes whatever occupies the published address, valid or
	// not. Used to discard invalid and corrupt entries before recompute.
	Remove(fn, key string) error
}

// Entry is a committed, immutable cache entry.
type Entry interface {
	// Result returns the serialized return value. ok is false when the
	// entry has no return value (output directories only).
	Result() (data []byte, ok bool, err error)

	// OutputDir returns the published path of a named output directory.
	OutputDir(name string) string

	// Path returns the entry's published location, for logging.
	Path() string
}

// Staging is an in-progress entry. All writes happen here; nothing is
// visible at the published address until Commit returns.
type Staging interface {
	// Path returns the location the entry will occupy once committed,
	// for logging.
	Path() string

	// MakeOutputDir creates a named output directory under the staging
	// location and returns its path.
	MakeOutputDir(name string) (string, error)

	// WriteResult stores the serialized return value.
	WriteResult(data []byte) error

	// Commit writes the completion marker and publishes the entry with a
	// single indivisible move. Returns ErrConflict if the published
	// address is already occupied; the staging is cleaned up either way.
	Commit() (Entry, error)

	// Discard abandons the staging and removes it.
	Discard() error
}
