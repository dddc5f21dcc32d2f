package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/user/logview/internal/adapter/repository/memory"
	"github.com/user/logview/internal/domain"
	"github.com/user/logview/internal/domain/mocks"
)

func TestManageFilesUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("List Empty Session", func(t *testing.T) {
		uc := NewManageFilesUseCase(memory.NewRegistry(), mocks.NewMockBlobStore(), testLogger())
		files, err := uc.List(ctx, "fresh-session")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if files == nil {
			t.Fatal("expected an empty slice, not nil")
		}
		if len(files) != 0 {
			t.Errorf("expected 0 files, got %d", len(files))
		}
	})

	t.Run("Delete Last Reference Unlinks Content", func(t *testing.T) {
		registry := memory.NewRegistry()
		store := mocks.NewMockBlobStore()
		upload := NewUploadFileUseCase(registry, store, testLogger())
		uc := NewManageFilesUseCase(registry, store, testLogger())

		rec, _, err := upload.Upload(ctx, "session-a", "app.log", strings.NewReader("content\n"))
		if err != nil {
			t.Fatalf("upload failed: %v", err)
		}

		if _, err := uc.Delete(ctx, "session-a", rec.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, ok := store.Files[rec.StoredName]; ok {
			t.Error("expected stored content removed with last reference")
		}

		files, err := uc.List(ctx, "session-a")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("expected empty session, got %d files", len(files))
		}
	})

	t.Run("Shared Content Survives Other Session's Delete", func(t *testing.T) {
		registry := memory.NewRegistry()
		store := mocks.NewMockBlobStore()
		upload := NewUploadFileUseCase(registry, store, testLogger())
		uc := NewManageFilesUseCase(registry, store, testLogger())

		recA, _, err := upload.Upload(ctx, "session-a", "a.log", strings.NewReader("shared\n"))
		if err != nil {
			t.Fatalf("session-a upload failed: %v", err)
		}
		recB, _, err := upload.Upload(ctx, "session-b", "b.log", strings.NewReader("shared\n"))
		if err != nil {
			t.Fatalf("session-b upload failed: %v", err)
		}

		if _, err := uc.Delete(ctx, "session-a", recA.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, ok := store.Files[recB.StoredName]; !ok {
			t.Error("shared content must survive while session-b still references it")
		}

		if _, err := uc.Delete(ctx, "session-b", recB.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, ok := store.Files[recB.StoredName]; ok {
			t.Error("expected content removed after the final reference")
		}
	})

	t.Run("Delete Unknown File", func(t *testing.T) {
		uc := NewManageFilesUseCase(memory.NewRegistry(), mocks.NewMockBlobStore(), testLogger())
		_, err := uc.Delete(ctx, "session-a", "missing-id")
		if !errors.Is(err, domain.ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("Unlink Failure Still Succeeds", func(t *testing.T) {
		registry := &mocks.MockFileRegistry{
			RemoveResult:    domain.FileRecord{ID: "file-1", StoredName: "stored.log"},
			RemoveDeletable: true,
		}
		store := mocks.NewMockBlobStore()
		store.RemoveErr = context.DeadlineExceeded
		uc := NewManageFilesUseCase(registry, store, testLogger())

		rec, err := uc.Delete(ctx, "session-a", "file-1")
		if err != nil {
			t.Fatalf("registry removal succeeded, delete must not fail: %v", err)
		}
		if rec.ID != "file-1" {
			t.Errorf("unexpected record %+v", rec)
		}
	})
}
