package domain

import (
	"context"
	"io"
	"time"
)

// FileRegistry tracks content fingerprints, their stored names, and which
// sessions reference them. All mutating operations are atomic with respect
// to each other: two concurrent registrations of the same fingerprint
// observe a single stored name, and a removal's "no session still references
// this content" decision cannot race a concurrent registration.
type FileRegistry interface {
	// RegisterContent resolves or registers a fingerprint. When the
	// fingerprint is unknown, storedName is recorded and returned; when it is
	// already registered, the existing stored name is returned with
	// existed=true and the candidate storedName is ignored. In both cases
	// sessionID is atomically added to the fingerprint's reference set.
	RegisterContent(ctx context.Context, fingerprint, storedName, sessionID string) (actual string, existed bool, err error)

	// AddToSession appends a file record to the session's file list.
	AddToSession(ctx context.Context, sessionID string, rec FileRecord) error

	// SessionFiles lists the session's file records in upload order.
	SessionFiles(ctx context.Context, sessionID string) ([]FileRecord, error)

	// SessionHasFingerprint reports whether the session already references
	// content with this fingerprint.
	SessionHasFingerprint(ctx context.Context, sessionID, fingerprint string) (bool, error)

	// RemoveFromSession removes the session's reference with the given file
	// ID. It atomically drops the session from the fingerprint's reference
	// set and, when no session remains, unregisters the fingerprint and
	// reports deletable=true: the caller then owns unlinking the stored
	// content. Returns ErrFileNotFound for an unknown ID.
	RemoveFromSession(ctx context.Context, sessionID, fileID string) (rec FileRecord, deletable bool, err error)

	// ReferencedStoredNames returns the set of stored names referenced by at
	// least one session.
	ReferencedStoredNames(ctx context.Context) (map[string]struct{}, error)

	// UnregisterStored drops the fingerprint mapping that points at
	// storedName, if any. Used by reconciliation after unlinking an orphan.
	UnregisterStored(ctx context.Context, storedName string) error

	// ExpireBefore removes session file records uploaded before cutoff and
	// returns how many were removed. The content they referenced is left for
	// reconciliation to collect once unreferenced.
	ExpireBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Reset drops every session, reference, and fingerprint mapping.
	// A reset of an empty registry is a no-op.
	Reset(ctx context.Context) error

	// Stats summarizes registry contents.
	Stats(ctx context.Context) (RegistryStats, error)
}

// BlobStore is content storage for uploaded files. Writes go through a
// temporary name so a stored name only ever appears with complete content.
type BlobStore interface {
	// SaveTemp streams r into a temporary file and returns its name and size.
	SaveTemp(r io.Reader) (tmpName string, size int64, err error)

	// Promote atomically renames a temporary file to its final stored name.
	Promote(tmpName, storedName string) error

	// Discard removes a temporary file that will not be promoted.
	Discard(tmpName string) error

	// Open opens stored content for scanning.
	Open(storedName string) (io.ReadSeekCloser, error)

	// Remove unlinks stored content. Removing an already-absent name is not
	// an error.
	Remove(storedName string) error

	// List returns the stored names currently on disk.
	List() ([]string, error)
}
