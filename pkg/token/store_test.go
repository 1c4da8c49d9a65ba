package token

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestToken_Usable(t *testing.T) {
	tests := []struct {
		name  string
		token *Token
		want  bool
	}{
		{"nil", nil, false},
		{"empty", &Token{}, false},
		{"valid", &Token{Value: "abc"}, true},
		{"invalid", &Token{Value: "abc", Invalid: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToken_Masked(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefgh", "****efgh"},
	}

	for _, tt := range tests {
		tok := Token{Value: tt.value}
		if got := tok.Masked(); got != tt.want {
			t.Errorf("Masked(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestNew_TrimsValue(t *testing.T) {
	tok := New("  abc \n")
	if tok.Value != "abc" {
		t.Errorf("Value = %q", tok.Value)
	}
	if tok.Age() > time.Second {
		t.Errorf("SavedAt not set to now: %v", tok.SavedAt)
	}
}

// storeContract runs the behavior every Store must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Load(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("empty store Load() error = %v, want ErrNoToken", err)
	}

	if err := s.Save(ctx, Token{}); !errors.Is(err, ErrNoToken) {
		t.Errorf("Save(empty) error = %v, want ErrNoToken", err)
	}

	if err := s.Save(ctx, New("secret-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Value != "secret-1" || got.Invalid {
		t.Errorf("Load() = %+v", got)
	}

	if err := MarkInvalid(ctx, s); err != nil {
		t.Fatalf("MarkInvalid() error = %v", err)
	}
	got, _ = s.Load(ctx)
	if !got.Invalid {
		t.Error("token should be marked invalid")
	}

	src := NewSource(s)
	if _, err := src.Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("Source.Token() on invalid token error = %v", err)
	}

	if err := s.Save(ctx, New("secret-2")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	value, err := src.Token(ctx)
	if err != nil || value != "secret-2" {
		t.Errorf("Source.Token() = %q, %v", value, err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("Load() after Clear error = %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
	if err := MarkInvalid(ctx, s); err != nil {
		t.Errorf("MarkInvalid() on empty store error = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	s := NewFileStore(path)
	storeContract(t, s)

	if err := s.Save(context.Background(), New("abc")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(path).Load(context.Background())
	if err == nil || errors.Is(err, ErrNoToken) {
		t.Errorf("corrupt file should fail with a parse error, got %v", err)
	}
}

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.Del(ctx, RedisKeyToken).Err(); err != nil {
		t.Fatalf("Failed to reset token key: %v", err)
	}

	t.Cleanup(func() {
		client.Del(context.Background(), RedisKeyToken)
		client.Close()
	})

	return client
}

func TestRedisStore(t *testing.T) {
	redisClient := setupTestRedis(t)
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	storeContract(t, NewRedisStore(redisClient, logger))
}
