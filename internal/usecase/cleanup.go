package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/logview/internal/domain"
)

// CleanupUseCase repairs drift between the registry and the blob store and
// performs scheduled full resets.
type CleanupUseCase struct {
	registry domain.FileRegistry
	store    domain.BlobStore
	logger   *slog.Logger
}

func NewCleanupUseCase(registry domain.FileRegistry, store domain.BlobStore, logger *slog.Logger) *CleanupUseCase {
	return &CleanupUseCase{registry: registry, store: store, logger: logger}
}

// Reconcile removes stored files no registry entry references. When maxAge is
// positive, registry entries older than the cutoff are expired first so their
// files become orphans in the same pass. Returns the number of files removed.
func (uc *CleanupUseCase) Reconcile(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge > 0 {
		cutoff := time.Now().UTC().Add(-maxAge)
		expired, err := uc.registry.ExpireBefore(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to expire old entries: %w", err)
		}
		if expired > 0 {
			uc.logger.Info("expired old registry entries", "count", expired, "cutoff", cutoff)
		}
	}

	stored, err := uc.store.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list stored files: %w", err)
	}
	referenced, err := uc.registry.ReferencedStoredNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list referenced files: %w", err)
	}

	removed := 0
	for _, name := range stored {
		if _, ok := referenced[name]; ok {
			continue
		}
		if err := uc.store.Remove(name); err != nil {
			// Leave the registry untouched so the next pass retries.
			uc.logger.Warn("failed to remove orphaned file", "stored_name", name, "error", err)
			continue
		}
		if err := uc.registry.UnregisterStored(ctx, name); err != nil {
			uc.logger.Warn("failed to unregister removed file", "stored_name", name, "error", err)
		}
		removed++
	}

	if removed > 0 {
		uc.logger.Info("reconcile removed orphaned files", "count", removed)
	}
	return removed, nil
}

// FullReset wipes every stored file and all registry state. Sessions survive
// but their file lists become empty.
func (uc *CleanupUseCase) FullReset(ctx context.Context) (int, error) {
	stored, err := uc.store.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list stored files: %w", err)
	}

	removed := 0
	for _, name := range stored {
		if err := uc.store.Remove(name); err != nil {
			uc.logger.Warn("failed to remove stored file during reset", "stored_name", name, "error", err)
			continue
		}
		removed++
	}

	if err := uc.registry.Reset(ctx); err != nil {
		return removed, fmt.Errorf("failed to reset registry: %w", err)
	}

	uc.logger.Info("full reset completed", "files_removed", removed)
	return removed, nil
}

// StoredFileCount reports how many blobs the store currently holds, for the
// stored-files gauge.
func (uc *CleanupUseCase) StoredFileCount() (int, error) {
	stored, err := uc.store.List()
	if err != nil {
		return 0, err
	}
	return len(stored), nil
}
