// Package redis implements the file registry on Redis, the store the
// service shares across processes in a multi-worker deployment. Register and
// release run as Lua scripts so the compare-and-register and the
// "no session still references this content" decision are atomic against
// concurrent writers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/logview/internal/domain"
)

const (
	hashKeyPrefix    = "files:hash:"    // fingerprint -> stored name
	refsKeyPrefix    = "files:refs:"    // fingerprint -> set of session IDs
	sessionKeyPrefix = "files:session:" // session ID -> list of record JSON
	hashesKeyPrefix  = "files:hashes:"  // session ID -> set of fingerprints
)

// registerScript resolves or registers a fingerprint and adds the session to
// its reference set in one atomic step.
// KEYS[1] = hash key, KEYS[2] = refs key; ARGV[1] = candidate stored name,
// ARGV[2] = session ID. Returns {stored name, existed flag}.
var registerScript = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
local existed = 1
if not stored then
  stored = ARGV[1]
  redis.call('SET', KEYS[1], stored)
  existed = 0
end
redis.call('SADD', KEYS[2], ARGV[2])
return {stored, existed}
`)

// releaseScript removes one session file record and computes the release
// decision atomically: the record is pulled from the session list, the
// fingerprint leaves the session's hash set and the session leaves the
// fingerprint's reference set; when the reference set empties, the
// fingerprint mapping is dropped and the content reported deletable.
// KEYS[1] = session list, KEYS[2] = session hashes, KEYS[3] = refs key,
// KEYS[4] = hash key; ARGV[1] = exact record JSON, ARGV[2] = fingerprint,
// ARGV[3] = session ID. Returns -1 when the record is already gone,
// 1 when deletable, 0 otherwise.
var releaseScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
  return -1
end
redis.call('SREM', KEYS[2], ARGV[2])
redis.call('SREM', KEYS[3], ARGV[3])
if redis.call('SCARD', KEYS[3]) == 0 then
  redis.call('DEL', KEYS[3])
  redis.call('DEL', KEYS[4])
  return 1
end
return 0
`)

// Registry implements domain.FileRegistry on a Redis client.
type Registry struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRegistry creates a Redis-backed registry.
func NewRegistry(client *redis.Client, logger *slog.Logger) *Registry {
	return &Registry{
		client: client,
		logger: logger.With("component", "redis_registry"),
	}
}

func (r *Registry) RegisterContent(ctx context.Context, fingerprint, storedName, sessionID string) (string, bool, error) {
	keys := []string{hashKeyPrefix + fingerprint, refsKeyPrefix + fingerprint}
	res, err := registerScript.Run(ctx, r.client, keys, storedName, sessionID).Slice()
	if err != nil {
		return "", false, fmt.Errorf("failed to register content: %w", err)
	}
	if len(res) != 2 {
		return "", false, fmt.Errorf("unexpected register script reply: %v", res)
	}
	stored, _ := res[0].(string)
	existed, _ := res[1].(int64)
	return stored, existed == 1, nil
}

func (r *Registry) AddToSession(ctx context.Context, sessionID string, rec domain.FileRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal file record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, sessionKeyPrefix+sessionID, payload)
	pipe.SAdd(ctx, hashesKeyPrefix+sessionID, rec.Fingerprint)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add file to session: %w", err)
	}
	return nil
}

func (r *Registry) SessionFiles(ctx context.Context, sessionID string) ([]domain.FileRecord, error) {
	raw, err := r.client.LRange(ctx, sessionKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session files: %w", err)
	}

	records := make([]domain.FileRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.FileRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			r.logger.Warn("skipping malformed session record", "session_id", sessionID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Registry) SessionHasFingerprint(ctx context.Context, sessionID, fingerprint string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, hashesKeyPrefix+sessionID, fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session fingerprint: %w", err)
	}
	return ok, nil
}

func (r *Registry) RemoveFromSession(ctx context.Context, sessionID, fileID string) (domain.FileRecord, bool, error) {
	raw, err := r.client.LRange(ctx, sessionKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return domain.FileRecord{}, false, fmt.Errorf("failed to read session files: %w", err)
	}

	for _, item := range raw {
		var rec domain.FileRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		if rec.ID != fileID {
			continue
		}

		keys := []string{
			sessionKeyPrefix + sessionID,
			hashesKeyPrefix + sessionID,
			refsKeyPrefix + rec.Fingerprint,
			hashKeyPrefix + rec.Fingerprint,
		}
		res, err := releaseScript.Run(ctx, r.client, keys, item, rec.Fingerprint, sessionID).Int64()
		if err != nil {
			return domain.FileRecord{}, false, fmt.Errorf("failed to release file: %w", err)
		}
		if res < 0 {
			// A concurrent removal won the race on this exact record.
			return domain.FileRecord{}, false, domain.ErrFileNotFound
		}
		return rec, res == 1, nil
	}
	return domain.FileRecord{}, false, domain.ErrFileNotFound
}

func (r *Registry) ReferencedStoredNames(ctx context.Context) (map[string]struct{}, error) {
	names := make(map[string]struct{})
	iter := r.client.Scan(ctx, 0, refsKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fingerprint := strings.TrimPrefix(iter.Val(), refsKeyPrefix)
		count, err := r.client.SCard(ctx, iter.Val()).Result()
		if err != nil || count == 0 {
			continue
		}
		stored, err := r.client.Get(ctx, hashKeyPrefix+fingerprint).Result()
		if err != nil {
			continue
		}
		names[stored] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan reference keys: %w", err)
	}
	return names, nil
}

func (r *Registry) UnregisterStored(ctx context.Context, storedName string) error {
	iter := r.client.Scan(ctx, 0, hashKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		stored, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil || stored != storedName {
			continue
		}
		fingerprint := strings.TrimPrefix(iter.Val(), hashKeyPrefix)
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, iter.Val())
		pipe.Del(ctx, refsKeyPrefix+fingerprint)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to unregister stored name: %w", err)
		}
		return nil
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan hash keys: %w", err)
	}
	return nil
}

func (r *Registry) ExpireBefore(ctx context.Context, cutoff time.Time) (int, error) {
	expired := 0
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		sessionID := strings.TrimPrefix(iter.Val(), sessionKeyPrefix)
		raw, err := r.client.LRange(ctx, iter.Val(), 0, -1).Result()
		if err != nil {
			continue
		}
		for _, item := range raw {
			var rec domain.FileRecord
			if err := json.Unmarshal([]byte(item), &rec); err != nil {
				continue
			}
			if !rec.UploadTime.Before(cutoff) {
				continue
			}
			keys := []string{
				sessionKeyPrefix + sessionID,
				hashesKeyPrefix + sessionID,
				refsKeyPrefix + rec.Fingerprint,
				hashKeyPrefix + rec.Fingerprint,
			}
			res, err := releaseScript.Run(ctx, r.client, keys, item, rec.Fingerprint, sessionID).Int64()
			if err != nil {
				r.logger.Warn("failed to expire session record", "session_id", sessionID, "file_id", rec.ID, "error", err)
				continue
			}
			if res >= 0 {
				expired++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return expired, fmt.Errorf("failed to scan session keys: %w", err)
	}
	return expired, nil
}

func (r *Registry) Reset(ctx context.Context) error {
	for _, pattern := range []string{hashKeyPrefix + "*", refsKeyPrefix + "*", sessionKeyPrefix + "*", hashesKeyPrefix + "*"} {
		iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan keys for reset: %w", err)
		}
	}
	return nil
}

func (r *Registry) Stats(ctx context.Context) (domain.RegistryStats, error) {
	var stats domain.RegistryStats

	stored := make(map[string]struct{})
	iter := r.client.Scan(ctx, 0, hashKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		stats.Fingerprints++
		if name, err := r.client.Get(ctx, iter.Val()).Result(); err == nil {
			stored[name] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("failed to scan hash keys: %w", err)
	}
	stats.StoredFiles = len(stored)

	iter = r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		stats.Sessions++
		if n, err := r.client.LLen(ctx, iter.Val()).Result(); err == nil {
			stats.FileRefs += int(n)
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("failed to scan session keys: %w", err)
	}
	return stats, nil
}
