package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// PrincipalSession is the identity stashed while a super-admin impersonates
// another user, restored when they leave.
type PrincipalSession struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TenantID  string    `json:"tenant_id,omitempty"`
	TargetID  string    `json:"target_id"`
	StartedAt time.Time `json:"started_at"`
}

type SessionStore interface {
	Save(ctx context.Context, sid string, s PrincipalSession, ttl time.Duration) error
	Load(ctx context.Context, sid string) (*PrincipalSession, error)
	Delete(ctx context.Context, sid string) error
}

type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(c *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: c}
}

func sessionKey(sid string) string {
	return fmt.Sprintf("impersonation:%s", sid)
}

func (r *RedisSessionStore) Save(ctx context.Context, sid string, s PrincipalSession, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(sid), string(b), ttl).Err()
}

func (r *RedisSessionStore) Load(ctx context.Context, sid string) (*PrincipalSession, error) {
	raw, err := r.client.Get(ctx, sessionKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s PrincipalSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, sid string) error {
	return r.client.Del(ctx, sessionKey(sid)).Err()
}

// MemorySessionStore keeps sessions in process. Used when redis is not
// configured and in tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	s       PrincipalSession
	expires time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]memorySession{}}
}

func (m *MemorySessionStore) Save(_ context.Context, sid string, s PrincipalSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sid] = memorySession{s: s, expires: time.Now().Add(ttl)}
	return nil
}

func (m *MemorySessionStore) Load(_ context.Context, sid string) (*PrincipalSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[sid]
	if !ok || time.Now().After(entry.expires) {
		delete(m.sessions, sid)
		return nil, ErrSessionNotFound
	}
	s := entry.s
	return &s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sid)
	return nil
}
