package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateTTL = 10 * time.Minute

// StateStore issues single-use anti-forgery state values for the redirect flow.
type StateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client, prefix: "oauth:state:", ttl: stateTTL}
}

// Issue returns a new state and remembers where to send the user afterwards.
func (s *StateStore) Issue(ctx context.Context, redirect string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	ok, err := s.client.SetNX(ctx, s.prefix+state, redirect, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	if !ok {
		return "", errors.New("state collision")
	}
	return state, nil
}

// Consume validates and burns a state, returning the redirect stored with it.
func (s *StateStore) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrInvalidState
	}
	redirect, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("load state: %w", err)
	}
	return redirect, nil
}
