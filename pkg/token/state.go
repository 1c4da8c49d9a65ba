// Package token persists the SSO token sent with every backend request.
// It replaces the browser storage slot of the web application with a file,
// a Redis key or process memory.
package token

import (
	"errors"
	"strings"
	"time"
)

// RedisKeyToken is the fixed key holding the token in Redis.
const RedisKeyToken = "casedesk:sso_token"

// ErrNoToken is returned when no usable token is stored.
var ErrNoToken = errors.New("no SSO token stored")

// Token is the stored SSO token.
type Token struct {
	Value string `json:"value"`

	// SavedAt is when the user last entered the token.
	SavedAt time.Time `json:"saved_at"`

	// Invalid is set after the backend rejected the token. The user has to
	// enter a new one before further requests are sent.
	Invalid bool `json:"invalid,omitempty"`
}

// New returns a token saved now. Surrounding whitespace is removed.
func New(value string) Token {
	return Token{Value: strings.TrimSpace(value), SavedAt: time.Now()}
}

// Usable reports whether the token can be sent.
func (t *Token) Usable() bool {
	return t != nil && t.Value != "" && !t.Invalid
}

// Age returns how long ago the token was saved.
func (t *Token) Age() time.Duration {
	return time.Since(t.SavedAt)
}

// Masked returns the token with all but the last four characters hidden.
func (t *Token) Masked() string {
	if len(t.Value) <= 4 {
		return strings.Repeat("*", len(t.Value))
	}
	return strings.Repeat("*", len(t.Value)-4) + t.Value[len(t.Value)-4:]
}
