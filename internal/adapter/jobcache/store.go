// Package jobcache mirrors job snapshots and idempotency keys into Redis.
// The registry stays authoritative; the cache lets a submit with the same
// Idempotency-Key return the existing job and gives status lookups a fast
// path after the in-memory record is gone.
package jobcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
)

const (
	idempotencyTTL = 24 * time.Hour
	snapshotTTL    = 7 * 24 * time.Hour
)

// Store wraps a Redis connection.
type Store struct {
	rdb redis.Cmdable
}

// New creates a store over the given Redis client.
func New(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

// Fingerprint canonicalizes an input snapshot so an idempotency key can be
// checked against the payload it was first used with.
func Fingerprint(input domain.GenerationInput) string {
	raw, _ := json.Marshal(input)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// LookupIdempotent returns the job id previously recorded for the key. A key
// reused with a different payload is an error, not a silent new job.
func (s *Store) LookupIdempotent(ctx context.Context, key, fingerprint string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("jobcache: get idempotency: %w", err)
	}
	jobID, storedFP, ok := strings.Cut(val, "|")
	if !ok || storedFP != fingerprint {
		return "", false, fmt.Errorf("idempotency key %q reused with a different payload", key)
	}
	return jobID, true, nil
}

// RememberIdempotent binds the key to the job id and input fingerprint.
func (s *Store) RememberIdempotent(ctx context.Context, key, fingerprint, jobID string) error {
	if err := s.rdb.Set(ctx, idemKey(key), jobID+"|"+fingerprint, idempotencyTTL).Err(); err != nil {
		return fmt.Errorf("jobcache: set idempotency: %w", err)
	}
	return nil
}

// SaveSnapshot stores the serialized job, replacing any prior snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, job domain.GenerationJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobcache: encode job: %w", err)
	}
	if err := s.rdb.Set(ctx, snapKey(job.ID), raw, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("jobcache: set snapshot: %w", err)
	}
	return nil
}

// Snapshot loads a cached job by id.
func (s *Store) Snapshot(ctx context.Context, jobID string) (domain.GenerationJob, bool) {
	raw, err := s.rdb.Get(ctx, snapKey(jobID)).Bytes()
	if err != nil {
		return domain.GenerationJob{}, false
	}
	var job domain.GenerationJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return domain.GenerationJob{}, false
	}
	return job, true
}

// Forget drops the snapshots for cleared jobs.
func (s *Store) Forget(ctx context.Context, jobIDs []string) {
	if len(jobIDs) == 0 {
		return
	}
	keys := make([]string, len(jobIDs))
	for i, id := range jobIDs {
		keys[i] = snapKey(id)
	}
	_ = s.rdb.Del(ctx, keys...).Err()
}

func idemKey(key string) string {
	return "genjob:idemp:" + key
}

func snapKey(id string) string {
	return "genjob:" + id
}
