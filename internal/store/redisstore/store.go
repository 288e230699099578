package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const typingPrefix = "typing:"
const denyPrefix = "jwt_denied:"

// Store wraps the Redis client for the ephemeral state the chat keeps:
// typing presence and denylisted admin JWTs.
type Store struct {
	rdb       *redis.Client
	typingTTL time.Duration
}

func New(addr, password string, db int, typingTTL time.Duration) *Store {
	if typingTTL <= 0 {
		typingTTL = 6 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb, typingTTL: typingTTL}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// SetTyping refreshes the typing presence key for a token. Entries expire
// on their own; the API never deletes them explicitly.
func (s *Store) SetTyping(ctx context.Context, token, name string) error {
	return s.rdb.Set(ctx, typingPrefix+token, name, s.typingTTL).Err()
}

// Typing returns the current token -> author name snapshot.
func (s *Store) Typing(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	iter := s.rdb.Scan(ctx, 0, typingPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		name, err := s.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, err
		}
		out[key[len(typingPrefix):]] = name
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DenyJWT denylists an admin token id until it would have expired anyway.
func (s *Store) DenyJWT(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, denyPrefix+jti, "1", ttl).Err()
}

func (s *Store) IsJWTDenied(ctx context.Context, jti string) (bool, error) {
	_, err := s.rdb.Get(ctx, denyPrefix+jti).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
