package token

import (
	"context"
	"fmt"
)

// Source reads the token from a Store for every request. It satisfies
// client.TokenSource.
type Source struct {
	store Store
}

// NewSource wraps store.
func NewSource(store Store) *Source {
	return &Source{store: store}
}

// Token returns the stored value, or ErrNoToken when the token is missing or
// was rejected.
func (s *Source) Token(ctx context.Context) (string, error) {
	t, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if !t.Usable() {
		return "", fmt.Errorf("token rejected by backend: %w", ErrNoToken)
	}
	return t.Value, nil
}

// Invalidate marks the current token as rejected.
func (s *Source) Invalidate(ctx context.Context) error {
	return MarkInvalid(ctx, s.store)
}

// Store returns the underlying store.
func (s *Source) Store() Store {
	return s.store
}
