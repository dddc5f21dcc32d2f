package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/logview/internal/domain"
)

// ManageFilesUseCase lists and deletes a session's file references.
type ManageFilesUseCase struct {
	registry domain.FileRegistry
	store    domain.BlobStore
	logger   *slog.Logger
}

func NewManageFilesUseCase(registry domain.FileRegistry, store domain.BlobStore, logger *slog.Logger) *ManageFilesUseCase {
	return &ManageFilesUseCase{registry: registry, store: store, logger: logger}
}

// List returns the session's files in upload order. A session with no
// uploads yields an empty slice, not an error.
func (uc *ManageFilesUseCase) List(ctx context.Context, sessionID string) ([]domain.FileRecord, error) {
	files, err := uc.registry.SessionFiles(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session files: %w", err)
	}
	if files == nil {
		files = []domain.FileRecord{}
	}
	return files, nil
}

// Delete removes the session's reference to a file. The stored content is
// unlinked only when this was the last reference; a failed unlink is logged
// and left for the reconcile pass rather than failing the request, since the
// registry state is already consistent.
func (uc *ManageFilesUseCase) Delete(ctx context.Context, sessionID, fileID string) (domain.FileRecord, error) {
	rec, deletable, err := uc.registry.RemoveFromSession(ctx, sessionID, fileID)
	if err != nil {
		return domain.FileRecord{}, err
	}

	if deletable {
		if err := uc.store.Remove(rec.StoredName); err != nil {
			uc.logger.Warn("failed to remove stored file, leaving for reconcile",
				"stored_name", rec.StoredName, "error", err)
		} else {
			uc.logger.Info("stored file removed",
				"stored_name", rec.StoredName, "file_id", fileID)
		}
	}

	uc.logger.Info("file reference removed",
		"session_id", shortID(sessionID),
		"file_id", fileID,
		"last_reference", deletable,
	)
	return rec, nil
}
