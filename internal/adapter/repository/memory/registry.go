// Package memory implements the file registry as mutex-guarded maps. It is
// the default backend for single-process deployments and the substrate for
// most tests; the Redis and Postgres backends provide the same atomicity for
// multi-process setups.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/user/logview/internal/domain"
)

type contentEntry struct {
	storedName string
	refs       map[string]struct{} // session IDs referencing this fingerprint
}

// Registry is an in-memory domain.FileRegistry. A single mutex covers every
// operation, which makes each method trivially atomic with respect to the
// others.
type Registry struct {
	mu       sync.Mutex
	contents map[string]*contentEntry           // fingerprint -> content
	sessions map[string][]domain.FileRecord     // session ID -> records in upload order
	hashes   map[string]map[string]struct{}     // session ID -> fingerprints held
}

// NewRegistry returns an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		contents: make(map[string]*contentEntry),
		sessions: make(map[string][]domain.FileRecord),
		hashes:   make(map[string]map[string]struct{}),
	}
}

func (r *Registry) RegisterContent(ctx context.Context, fingerprint, storedName, sessionID string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, existed := r.contents[fingerprint]
	if !existed {
		entry = &contentEntry{storedName: storedName, refs: make(map[string]struct{})}
		r.contents[fingerprint] = entry
	}
	entry.refs[sessionID] = struct{}{}
	return entry.storedName, existed, nil
}

func (r *Registry) AddToSession(ctx context.Context, sessionID string, rec domain.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = append(r.sessions[sessionID], rec)
	if r.hashes[sessionID] == nil {
		r.hashes[sessionID] = make(map[string]struct{})
	}
	r.hashes[sessionID][rec.Fingerprint] = struct{}{}
	return nil
}

func (r *Registry) SessionFiles(ctx context.Context, sessionID string) ([]domain.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := make([]domain.FileRecord, len(r.sessions[sessionID]))
	copy(files, r.sessions[sessionID])
	return files, nil
}

func (r *Registry) SessionHasFingerprint(ctx context.Context, sessionID, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.hashes[sessionID][fingerprint]
	return ok, nil
}

func (r *Registry) RemoveFromSession(ctx context.Context, sessionID, fileID string) (domain.FileRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.sessions[sessionID]
	idx := -1
	for i, rec := range records {
		if rec.ID == fileID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.FileRecord{}, false, domain.ErrFileNotFound
	}

	rec := records[idx]
	r.sessions[sessionID] = append(records[:idx], records[idx+1:]...)
	if len(r.sessions[sessionID]) == 0 {
		delete(r.sessions, sessionID)
	}
	delete(r.hashes[sessionID], rec.Fingerprint)
	if len(r.hashes[sessionID]) == 0 {
		delete(r.hashes, sessionID)
	}

	return rec, r.dropRefLocked(rec.Fingerprint, sessionID), nil
}

// dropRefLocked removes the session from a fingerprint's reference set and
// unregisters the fingerprint when its last reference is gone, reporting
// whether the stored content is now deletable.
func (r *Registry) dropRefLocked(fingerprint, sessionID string) bool {
	entry, ok := r.contents[fingerprint]
	if !ok {
		return false
	}
	delete(entry.refs, sessionID)
	if len(entry.refs) > 0 {
		return false
	}
	delete(r.contents, fingerprint)
	return true
}

func (r *Registry) ReferencedStoredNames(ctx context.Context) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make(map[string]struct{}, len(r.contents))
	for _, entry := range r.contents {
		if len(entry.refs) > 0 {
			names[entry.storedName] = struct{}{}
		}
	}
	return names, nil
}

func (r *Registry) UnregisterStored(ctx context.Context, storedName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for fp, entry := range r.contents {
		if entry.storedName == storedName {
			delete(r.contents, fp)
			return nil
		}
	}
	return nil
}

func (r *Registry) ExpireBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expired := 0
	for sessionID, records := range r.sessions {
		kept := records[:0]
		for _, rec := range records {
			if rec.UploadTime.Before(cutoff) {
				expired++
				delete(r.hashes[sessionID], rec.Fingerprint)
				r.dropRefLocked(rec.Fingerprint, sessionID)
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(r.sessions, sessionID)
			delete(r.hashes, sessionID)
		} else {
			r.sessions[sessionID] = kept
		}
	}
	return expired, nil
}

func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contents = make(map[string]*contentEntry)
	r.sessions = make(map[string][]domain.FileRecord)
	r.hashes = make(map[string]map[string]struct{})
	return nil
}

func (r *Registry) Stats(ctx context.Context) (domain.RegistryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := domain.RegistryStats{
		Sessions:     len(r.sessions),
		Fingerprints: len(r.contents),
	}
	stored := make(map[string]struct{}, len(r.contents))
	for _, entry := range r.contents {
		stored[entry.storedName] = struct{}{}
	}
	stats.StoredFiles = len(stored)
	for _, records := range r.sessions {
		stats.FileRefs += len(records)
	}
	return stats, nil
}
