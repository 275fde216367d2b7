package fakebank

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "otp:v1:"

// GenerateOTP returns a random 6-digit code.
func GenerateOTP() string {
	return fmt.Sprintf("%06d", rand.Intn(900000)+100000)
}

// OTPStore holds one pending signup code per email, expiring after a TTL.
// A code is consumed on successful verification only, so a mistyped code can
// be retried until it expires.
type OTPStore interface {
	Put(ctx context.Context, email, code string, ttl time.Duration) error
	Consume(ctx context.Context, email, code string) (bool, error)
}

type otpEntry struct {
	code      string
	expiresAt time.Time
}

type memoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]otpEntry
}

// NewMemoryOTPStore constructs the in-process OTP store.
func NewMemoryOTPStore() OTPStore {
	return &memoryOTPStore{entries: make(map[string]otpEntry)}
}

func (s *memoryOTPStore) Put(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[email] = otpEntry{code: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *memoryOTPStore) Consume(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[email]
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, email)
		return false, nil
	}
	if entry.code != code {
		return false, nil
	}
	delete(s.entries, email)
	return true, nil
}

// RedisOTPStore keeps pending codes in Redis with a native TTL, for running
// multiple stub instances against shared state.
type RedisOTPStore struct {
	client *redis.Client
}

// NewRedisOTPStore wraps an existing Redis client.
func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func (s *RedisOTPStore) Put(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, otpKeyPrefix+email, code, ttl).Err()
}

func (s *RedisOTPStore) Consume(ctx context.Context, email, code string) (bool, error) {
	key := otpKeyPrefix + email
	stored, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored != code {
		return false, nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return false, err
	}
	return true, nil
}
