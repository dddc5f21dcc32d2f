package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/user/logview/internal/domain"
)

// UploadFileUseCase handles the business logic for ingesting an uploaded log
// file: fingerprinting, per-session and cross-session deduplication, and
// registration of the session's reference.
type UploadFileUseCase struct {
	registry domain.FileRegistry
	store    domain.BlobStore
	logger   *slog.Logger
}

// NewUploadFileUseCase creates a new UploadFileUseCase.
func NewUploadFileUseCase(registry domain.FileRegistry, store domain.BlobStore, logger *slog.Logger) *UploadFileUseCase {
	return &UploadFileUseCase{
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// Upload streams the file to a temporary location while fingerprinting it,
// then resolves deduplication:
//
//   - the session already holds this content: the existing record is
//     returned with duplicate=true and nothing is stored;
//   - another session holds it: the stored content is reused and only a new
//     reference is created;
//   - new content: the spooled file is promoted under a fresh stored name.
//
// Content is MD5-fingerprinted; collisions are treated as identical content.
func (uc *UploadFileUseCase) Upload(ctx context.Context, sessionID, originalName string, r io.Reader) (domain.FileRecord, bool, error) {
	hash := md5.New()
	tmpName, size, err := uc.store.SaveTemp(io.TeeReader(r, hash))
	if err != nil {
		return domain.FileRecord{}, false, fmt.Errorf("failed to spool upload: %w", err)
	}
	fingerprint := hex.EncodeToString(hash.Sum(nil))

	log := uc.logger.With("session_id", shortID(sessionID), "file", originalName, "fingerprint", shortID(fingerprint))
	log.Info("upload received", "size_bytes", size)

	// Fast path: this session already uploaded this exact content.
	has, err := uc.registry.SessionHasFingerprint(ctx, sessionID, fingerprint)
	if err != nil {
		_ = uc.store.Discard(tmpName)
		return domain.FileRecord{}, false, err
	}
	if has {
		_ = uc.store.Discard(tmpName)
		files, err := uc.registry.SessionFiles(ctx, sessionID)
		if err != nil {
			return domain.FileRecord{}, false, err
		}
		for _, rec := range files {
			if rec.Fingerprint == fingerprint {
				log.Info("duplicate upload short-circuited", "file_id", rec.ID)
				return rec, true, nil
			}
		}
		// The hash set and the file list disagree; fall through and
		// re-register so the session ends up consistent.
		log.Warn("session fingerprint set out of sync with file list")
	}

	// Promote before registering. A failure in between leaves at worst an
	// unreferenced stored file, which reconciliation collects; registering
	// first could leave a referenced fingerprint with no content behind it,
	// and no later pass can repair that.
	candidate := uuid.NewString() + "_" + originalName
	if err := uc.store.Promote(tmpName, candidate); err != nil {
		_ = uc.store.Discard(tmpName)
		return domain.FileRecord{}, false, err
	}

	storedName, existed, err := uc.registry.RegisterContent(ctx, fingerprint, candidate, sessionID)
	if err != nil {
		_ = uc.store.Remove(candidate)
		return domain.FileRecord{}, false, err
	}

	if existed {
		// Identical content already stored by some session; drop our copy.
		_ = uc.store.Remove(candidate)
		log.Info("reusing stored content", "stored_name", storedName)
	} else {
		log.Info("stored new content", "stored_name", storedName)
	}

	rec := domain.FileRecord{
		ID:           uuid.NewString(),
		OriginalName: originalName,
		StoredName:   storedName,
		Fingerprint:  fingerprint,
		UploadTime:   time.Now().UTC(),
	}
	if err := uc.registry.AddToSession(ctx, sessionID, rec); err != nil {
		return domain.FileRecord{}, false, err
	}
	return rec, false, nil
}

// shortID truncates identifiers for log lines.
func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
