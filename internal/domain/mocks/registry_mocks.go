package mocks

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/user/logview/internal/domain"
)

// MockFileRegistry is a mock implementation of domain.FileRegistry for
// testing. Results and errors are set per method; calls are recorded.
type MockFileRegistry struct {
	mu sync.Mutex

	RegisterStored  string
	RegisterExisted bool
	RegisterErr     error
	RegisterCalls   int

	AddedRecords []domain.FileRecord
	AddErr       error

	SessionFilesResult []domain.FileRecord
	SessionFilesErr    error

	HasFingerprintResult bool
	HasFingerprintErr    error

	RemoveResult    domain.FileRecord
	RemoveDeletable bool
	RemoveErr       error
	RemovedFileIDs  []string

	ReferencedResult map[string]struct{}
	ReferencedErr    error

	UnregisteredNames []string
	UnregisterErr     error

	ExpireResult int
	ExpireErr    error

	ResetCalls int
	ResetErr   error

	StatsResult domain.RegistryStats
	StatsErr    error
}

func (m *MockFileRegistry) RegisterContent(ctx context.Context, fingerprint, storedName, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RegisterCalls++
	if m.RegisterErr != nil {
		return "", false, m.RegisterErr
	}
	if m.RegisterExisted {
		return m.RegisterStored, true, nil
	}
	return storedName, false, nil
}

func (m *MockFileRegistry) AddToSession(ctx context.Context, sessionID string, rec domain.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	m.AddedRecords = append(m.AddedRecords, rec)
	return nil
}

func (m *MockFileRegistry) SessionFiles(ctx context.Context, sessionID string) ([]domain.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SessionFilesErr != nil {
		return nil, m.SessionFilesErr
	}
	return m.SessionFilesResult, nil
}

func (m *MockFileRegistry) SessionHasFingerprint(ctx context.Context, sessionID, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HasFingerprintErr != nil {
		return false, m.HasFingerprintErr
	}
	return m.HasFingerprintResult, nil
}

func (m *MockFileRegistry) RemoveFromSession(ctx context.Context, sessionID, fileID string) (domain.FileRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return domain.FileRecord{}, false, m.RemoveErr
	}
	m.RemovedFileIDs = append(m.RemovedFileIDs, fileID)
	return m.RemoveResult, m.RemoveDeletable, nil
}

func (m *MockFileRegistry) ReferencedStoredNames(ctx context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReferencedErr != nil {
		return nil, m.ReferencedErr
	}
	if m.ReferencedResult == nil {
		return map[string]struct{}{}, nil
	}
	return m.ReferencedResult, nil
}

func (m *MockFileRegistry) UnregisterStored(ctx context.Context, storedName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UnregisterErr != nil {
		return m.UnregisterErr
	}
	m.UnregisteredNames = append(m.UnregisteredNames, storedName)
	return nil
}

func (m *MockFileRegistry) ExpireBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExpireErr != nil {
		return 0, m.ExpireErr
	}
	return m.ExpireResult, nil
}

func (m *MockFileRegistry) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResetErr != nil {
		return m.ResetErr
	}
	m.ResetCalls++
	return nil
}

func (m *MockFileRegistry) Stats(ctx context.Context) (domain.RegistryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsErr != nil {
		return domain.RegistryStats{}, m.StatsErr
	}
	return m.StatsResult, nil
}

// MockBlobStore is an in-memory mock implementation of domain.BlobStore.
// Files live in a map keyed by name; temp names are generated sequentially.
type MockBlobStore struct {
	mu      sync.Mutex
	tempSeq int

	Temps   map[string][]byte
	Files   map[string][]byte
	Removed []string

	SaveErr    error
	PromoteErr error
	OpenErr    error
	RemoveErr  error
	ListErr    error
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		Temps: make(map[string][]byte),
		Files: make(map[string][]byte),
	}
}

func (m *MockBlobStore) SaveTemp(r io.Reader) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return "", 0, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	m.tempSeq++
	name := "tmp-" + string(rune('a'+m.tempSeq-1))
	m.Temps[name] = data
	return name, int64(len(data)), nil
}

func (m *MockBlobStore) Promote(tmpName, storedName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PromoteErr != nil {
		return m.PromoteErr
	}
	data, ok := m.Temps[tmpName]
	if !ok {
		return os.ErrNotExist
	}
	delete(m.Temps, tmpName)
	m.Files[storedName] = data
	return nil
}

func (m *MockBlobStore) Discard(tmpName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Temps, tmpName)
	return nil
}

func (m *MockBlobStore) Open(storedName string) (io.ReadSeekCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	data, ok := m.Files[storedName]
	if !ok {
		return nil, os.ErrNotExist
	}
	return nopCloser{bytes.NewReader(data)}, nil
}

func (m *MockBlobStore) Remove(storedName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.Files, storedName)
	m.Removed = append(m.Removed, storedName)
	return nil
}

func (m *MockBlobStore) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	return names, nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
