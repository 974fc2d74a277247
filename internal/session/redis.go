package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces session keys in Redis
const DefaultKeyPrefix = "triage:session:"

// maxUpdateRetries bounds optimistic transaction retries in Update
const maxUpdateRetries = 3

// RedisStore keeps sessions as JSON values in Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a Redis session store. A positive ttl expires
// sessions that are not written for that long.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    ttl,
		logger: logger,
	}
}

// WithPrefix returns a copy of the store using a different key prefix
func (s *RedisStore) WithPrefix(prefix string) *RedisStore {
	cp := *s
	cp.prefix = prefix
	return &cp
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Create stores a new session, failing if the key exists
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidID
	}

	touch(sess)
	data, err := Marshal(sess)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.key(sess.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return ErrExists
	}

	return nil
}

// Get loads a session
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return Unmarshal(data)
}

// Save upserts a session
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidID
	}

	touch(sess)
	data, err := Marshal(sess)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Update runs fn inside a WATCH/MULTI transaction on the session key
func (s *RedisStore) Update(ctx context.Context, id string, fn func(sess *Session) error) (*Session, error) {
	key := s.key(id)

	var updated *Session
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load session: %w", err)
		}

		sess, err := Unmarshal(data)
		if err != nil {
			return err
		}

		if err := fn(sess); err != nil {
			return err
		}

		sess.ID = id
		touch(sess)
		out, err := Marshal(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		updated = sess
		return nil
	}

	for attempt := 1; attempt <= maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}

		s.logger.Debug("session update lost race, retrying",
			zap.String("session_id", id),
			zap.Int("attempt", attempt),
		)
	}

	return nil, ErrConflict
}

// Delete removes a session
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List scans all session keys under the prefix
func (s *RedisStore) List(ctx context.Context) ([]*Session, error) {
	var out []*Session

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// expired between scan and get
				continue
			}
			return nil, fmt.Errorf("failed to load session: %w", err)
		}

		sess, err := Unmarshal(data)
		if err != nil {
			s.logger.Warn("skipping undecodable session",
				zap.String("key", iter.Val()),
				zap.Error(err),
			)
			continue
		}
		out = append(out, sess)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)
