package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidshare/backend/internal/auth"
)

const (
	redisSessionPrefix = "vidshare:session:"
	redisAccountPrefix = "vidshare:account-sessions:"
)

// RedisSessionStore keeps tokens in Redis with a TTL matching their expiry. Each
// account also has a set of its tokens that lives as long as its longest token.
type RedisSessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisSessionStore constructs a session store on top of client.
func NewRedisSessionStore(client redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

type redisSession struct {
	Kind      string    `json:"kind"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Save stores session until its expiry.
func (s *RedisSessionStore) Save(ctx context.Context, session auth.Session) error {
	payload, err := json.Marshal(redisSession{
		Kind:      session.Kind,
		AccountID: session.AccountID,
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, redisSessionPrefix+session.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	index := redisAccountPrefix + session.AccountID
	if err := s.client.SAdd(ctx, index, session.Token).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	current, err := s.client.TTL(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("read index ttl: %w", err)
	}
	if current < ttl {
		if err := s.client.Expire(ctx, index, ttl).Err(); err != nil {
			return fmt.Errorf("expire index: %w", err)
		}
	}
	return nil
}

// Find loads a session by its token.
func (s *RedisSessionStore) Find(ctx context.Context, token string) (auth.Session, error) {
	raw, err := s.client.Get(ctx, redisSessionPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("get session: %w", err)
	}

	var stored redisSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return auth.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return auth.Session{
		Token:     token,
		Kind:      stored.Kind,
		AccountID: stored.AccountID,
		ExpiresAt: stored.ExpiresAt.UTC(),
	}, nil
}

// Delete removes a session by its token.
func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	session, err := s.Find(ctx, token)
	if err != nil {
		return err
	}
	removed, err := s.client.Del(ctx, redisSessionPrefix+token).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed == 0 {
		return auth.ErrSessionNotFound
	}
	if err := s.client.SRem(ctx, redisAccountPrefix+session.AccountID, token).Err(); err != nil {
		return fmt.Errorf("unindex session: %w", err)
	}
	return nil
}

// DeleteAccount removes every token indexed for accountID.
func (s *RedisSessionStore) DeleteAccount(ctx context.Context, accountID string) (int, error) {
	index := redisAccountPrefix + accountID
	tokens, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return 0, fmt.Errorf("list account sessions: %w", err)
	}

	var removed int64
	if len(tokens) > 0 {
		keys := make([]string, len(tokens))
		for i, token := range tokens {
			keys[i] = redisSessionPrefix + token
		}
		if removed, err = s.client.Del(ctx, keys...).Result(); err != nil {
			return 0, fmt.Errorf("delete account sessions: %w", err)
		}
	}
	if err := s.client.Del(ctx, index).Err(); err != nil {
		return int(removed), fmt.Errorf("delete session index: %w", err)
	}
	return int(removed), nil
}
