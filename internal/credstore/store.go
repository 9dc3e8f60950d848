// Package credstore persists the bearer credential and the last known identity
// snapshot so a session survives restarts of the console.
package credstore

import (
	"context"
	"encoding/json"
	"fmt"

	"consola.app/internal/auth"
)

// Storage keys. A profile holds at most one value per key.
const (
	KeyToken    = "authToken"
	KeyIdentity = "authUser"
)

// Store describes durable credential persistence. Implementations write
// synchronously: when a Set call returns the value is durable.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	Identity(ctx context.Context) (*auth.Identity, error)
	SetIdentity(ctx context.Context, id auth.Identity) error
	// Clear removes every key. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}

// kv is the primitive the concrete stores implement; typed access is shared.
type kv interface {
	get(ctx context.Context, key string) (string, bool, error)
	put(ctx context.Context, key, value string) error
	clear(ctx context.Context) error
}

type typed struct{ kv kv }

func (t typed) Token(ctx context.Context) (string, error) {
	v, _, err := t.kv.get(ctx, KeyToken)
	return v, err
}

func (t typed) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("credstore: empty token")
	}
	return t.kv.put(ctx, KeyToken, token)
}

func (t typed) Identity(ctx context.Context) (*auth.Identity, error) {
	raw, ok, err := t.kv.get(ctx, KeyIdentity)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var id auth.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, fmt.Errorf("credstore: decode identity snapshot: %w", err)
	}
	return &id, nil
}

func (t typed) SetIdentity(ctx context.Context, id auth.Identity) error {
	b, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("credstore: encode identity snapshot: %w", err)
	}
	return t.kv.put(ctx, KeyIdentity, string(b))
}

func (t typed) Clear(ctx context.Context) error { return t.kv.clear(ctx) }
