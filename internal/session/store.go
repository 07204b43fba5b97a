package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound covers every unresolvable session: unknown id, expired
// record, destroyed session. Callers surface it as unauthenticated and
// never as a partial identity.
var ErrNotFound = errors.New("session not found")

// Record is the mutable server-side half of a session. SelectedSchool
// is the only field that changes after creation.
type Record struct {
	SessionID      string `json:"session_id"`
	AccountID      string `json:"account_id"`
	SelectedSchool string `json:"selected_school"`
	CreatedAt      int64  `json:"created_at"`
}

type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: client, ttl: ttl}
}

func (s *Store) Create(ctx context.Context, accountID, selectedSchool string) (Record, error) {
	record := Record{
		SessionID:      uuid.NewString(),
		AccountID:      accountID,
		SelectedSchool: selectedSchool,
		CreatedAt:      time.Now().UTC().Unix(),
	}
	if err := s.write(ctx, record, s.ttl); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Get returns the session snapshot a request decides against. A
// concurrent school switch changes later reads, never a snapshot
// already taken.
func (s *Store) Get(ctx context.Context, sessionID string) (Record, error) {
	value, err := s.redis.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// SetSelectedSchool rewrites the record under the remaining TTL. The
// caller must have validated membership first; this store only persists
// an already authorized switch.
func (s *Store) SetSelectedSchool(ctx context.Context, sessionID, schoolID string) (Record, error) {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	if record.SelectedSchool == schoolID {
		return record, nil
	}
	record.SelectedSchool = schoolID

	remaining, err := s.redis.TTL(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return Record{}, err
	}
	if remaining <= 0 {
		return Record{}, ErrNotFound
	}
	if err := s.write(ctx, record, remaining); err != nil {
		return Record{}, err
	}
	return record, nil
}

func (s *Store) Destroy(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, sessionKey(sessionID)).Err()
}

func (s *Store) write(ctx context.Context, record Record, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sessionKey(record.SessionID), data, ttl).Err()
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}
