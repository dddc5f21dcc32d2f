// Package postgres implements the file registry on PostgreSQL for
// deployments that already run a relational store. Uniqueness of the
// fingerprint mapping is enforced by the primary key, so compare-and-register
// is a single upsert; release decisions run in a transaction holding the
// content row lock so they cannot race a concurrent registration.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/logview/internal/domain"
)

// Registry implements domain.FileRegistry on *sql.DB (lib/pq driver).
type Registry struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRegistry creates a PostgreSQL-backed registry.
func NewRegistry(db *sql.DB, logger *slog.Logger) *Registry {
	return &Registry{
		db:     db,
		logger: logger.With("component", "postgres_registry"),
	}
}

// EnsureSchema creates the registry tables when they do not exist yet.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS log_contents (
		fingerprint TEXT PRIMARY KEY,
		stored_name TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS content_refs (
		fingerprint TEXT NOT NULL,
		session_id  TEXT NOT NULL,
		PRIMARY KEY (fingerprint, session_id)
	);
	CREATE TABLE IF NOT EXISTS session_files (
		file_id       TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL,
		fingerprint   TEXT NOT NULL,
		original_name TEXT NOT NULL,
		stored_name   TEXT NOT NULL,
		upload_time   TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS session_files_session_idx ON session_files (session_id);
	CREATE INDEX IF NOT EXISTS session_files_upload_time_idx ON session_files (upload_time);`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure registry schema: %w", err)
	}
	return nil
}

func (r *Registry) RegisterContent(ctx context.Context, fingerprint, storedName, sessionID string) (string, bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	// The DO UPDATE no-op makes RETURNING yield the surviving row either
	// way; xmax = 0 distinguishes a fresh insert from a conflict.
	var (
		actual   string
		inserted bool
	)
	err = txn.QueryRowContext(ctx, `
		INSERT INTO log_contents (fingerprint, stored_name) VALUES ($1, $2)
		ON CONFLICT (fingerprint) DO UPDATE SET stored_name = log_contents.stored_name
		RETURNING stored_name, (xmax = 0)`,
		fingerprint, storedName,
	).Scan(&actual, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("failed to register content: %w", err)
	}

	if _, err := txn.ExecContext(ctx, `
		INSERT INTO content_refs (fingerprint, session_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		fingerprint, sessionID,
	); err != nil {
		return "", false, fmt.Errorf("failed to add content reference: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return "", false, err
	}
	return actual, !inserted, nil
}

func (r *Registry) AddToSession(ctx context.Context, sessionID string, rec domain.FileRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_files (file_id, session_id, fingerprint, original_name, stored_name, upload_time)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, sessionID, rec.Fingerprint, rec.OriginalName, rec.StoredName, rec.UploadTime,
	)
	if err != nil {
		return fmt.Errorf("failed to add file to session: %w", err)
	}
	return nil
}

func (r *Registry) SessionFiles(ctx context.Context, sessionID string) ([]domain.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT file_id, fingerprint, original_name, stored_name, upload_time
		FROM session_files WHERE session_id = $1 ORDER BY upload_time, file_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session files: %w", err)
	}
	defer rows.Close()

	var records []domain.FileRecord
	for rows.Next() {
		var rec domain.FileRecord
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.OriginalName, &rec.StoredName, &rec.UploadTime); err != nil {
			return nil, fmt.Errorf("failed to scan session file row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Registry) SessionHasFingerprint(ctx context.Context, sessionID, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM session_files WHERE session_id = $1 AND fingerprint = $2)`,
		sessionID, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session fingerprint: %w", err)
	}
	return exists, nil
}

func (r *Registry) RemoveFromSession(ctx context.Context, sessionID, fileID string) (domain.FileRecord, bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.FileRecord{}, false, err
	}
	defer txn.Rollback()

	var rec domain.FileRecord
	err = txn.QueryRowContext(ctx, `
		SELECT file_id, fingerprint, original_name, stored_name, upload_time
		FROM session_files WHERE session_id = $1 AND file_id = $2 FOR UPDATE`,
		sessionID, fileID,
	).Scan(&rec.ID, &rec.Fingerprint, &rec.OriginalName, &rec.StoredName, &rec.UploadTime)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FileRecord{}, false, domain.ErrFileNotFound
	}
	if err != nil {
		return domain.FileRecord{}, false, fmt.Errorf("failed to look up session file: %w", err)
	}

	// Lock the content row so the reference count cannot race a concurrent
	// registration of the same fingerprint.
	var stored string
	err = txn.QueryRowContext(ctx,
		`SELECT stored_name FROM log_contents WHERE fingerprint = $1 FOR UPDATE`,
		rec.Fingerprint,
	).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.FileRecord{}, false, fmt.Errorf("failed to lock content row: %w", err)
	}
	contentKnown := err == nil

	if _, err := txn.ExecContext(ctx,
		`DELETE FROM session_files WHERE file_id = $1`, fileID,
	); err != nil {
		return domain.FileRecord{}, false, fmt.Errorf("failed to delete session file: %w", err)
	}
	if _, err := txn.ExecContext(ctx,
		`DELETE FROM content_refs WHERE fingerprint = $1 AND session_id = $2`,
		rec.Fingerprint, sessionID,
	); err != nil {
		return domain.FileRecord{}, false, fmt.Errorf("failed to delete content reference: %w", err)
	}

	deletable := false
	if contentKnown {
		var remaining int
		if err := txn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM content_refs WHERE fingerprint = $1`, rec.Fingerprint,
		).Scan(&remaining); err != nil {
			return domain.FileRecord{}, false, fmt.Errorf("failed to count content references: %w", err)
		}
		if remaining == 0 {
			if _, err := txn.ExecContext(ctx,
				`DELETE FROM log_contents WHERE fingerprint = $1`, rec.Fingerprint,
			); err != nil {
				return domain.FileRecord{}, false, fmt.Errorf("failed to unregister content: %w", err)
			}
			deletable = true
		}
	}

	if err := txn.Commit(); err != nil {
		return domain.FileRecord{}, false, err
	}
	return rec, deletable, nil
}

func (r *Registry) ReferencedStoredNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT c.stored_name
		FROM log_contents c JOIN content_refs r ON r.fingerprint = c.fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("failed to list referenced stored names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = struct{}{}
	}
	return names, rows.Err()
}

func (r *Registry) UnregisterStored(ctx context.Context, storedName string) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx, `
		DELETE FROM content_refs WHERE fingerprint IN
			(SELECT fingerprint FROM log_contents WHERE stored_name = $1)`,
		storedName,
	); err != nil {
		return fmt.Errorf("failed to drop content references: %w", err)
	}
	if _, err := txn.ExecContext(ctx,
		`DELETE FROM log_contents WHERE stored_name = $1`, storedName,
	); err != nil {
		return fmt.Errorf("failed to unregister stored name: %w", err)
	}
	return txn.Commit()
}

func (r *Registry) ExpireBefore(ctx context.Context, cutoff time.Time) (int, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	rows, err := txn.QueryContext(ctx, `
		DELETE FROM session_files WHERE upload_time < $1
		RETURNING fingerprint, session_id`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire session files: %w", err)
	}
	type ref struct{ fingerprint, sessionID string }
	var expired []ref
	for rows.Next() {
		var e ref
		if err := rows.Scan(&e.fingerprint, &e.sessionID); err != nil {
			rows.Close()
			return 0, err
		}
		expired = append(expired, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, e := range expired {
		if _, err := txn.ExecContext(ctx,
			`DELETE FROM content_refs WHERE fingerprint = $1 AND session_id = $2`,
			e.fingerprint, e.sessionID,
		); err != nil {
			return 0, fmt.Errorf("failed to drop expired reference: %w", err)
		}
	}
	if _, err := txn.ExecContext(ctx, `
		DELETE FROM log_contents c WHERE NOT EXISTS
			(SELECT 1 FROM content_refs r WHERE r.fingerprint = c.fingerprint)`,
	); err != nil {
		return 0, fmt.Errorf("failed to drop unreferenced content: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return 0, err
	}
	return len(expired), nil
}

func (r *Registry) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`TRUNCATE session_files, content_refs, log_contents`,
	); err != nil {
		return fmt.Errorf("failed to reset registry: %w", err)
	}
	return nil
}

func (r *Registry) Stats(ctx context.Context) (domain.RegistryStats, error) {
	var stats domain.RegistryStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT session_id) FROM session_files),
			(SELECT COUNT(*) FROM session_files),
			(SELECT COUNT(DISTINCT stored_name) FROM log_contents),
			(SELECT COUNT(*) FROM log_contents)`,
	).Scan(&stats.Sessions, &stats.FileRefs, &stats.StoredFiles, &stats.Fingerprints)
	if err != nil {
		return stats, fmt.Errorf("failed to collect registry stats: %w", err)
	}
	return stats, nil
}
