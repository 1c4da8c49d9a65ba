package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/logging"
)

func TestFromMap_Defaults(t *testing.T) {
	c, err := FromMap(map[string]string{})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}

	if c.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", c.PageSize)
	}
	if c.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", c.Concurrency)
	}
	if c.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", c.CacheTTL)
	}
	if c.CacheSize != 50 {
		t.Errorf("CacheSize = %d, want 50", c.CacheSize)
	}
	if c.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", c.RequestTimeout)
	}
	if c.Port != 8080 {
		t.Errorf("Port = %d, want 8080", c.Port)
	}
	if c.Environment.Name != client.Production.Name {
		t.Errorf("Environment = %q, want prod", c.Environment.Name)
	}
	if c.RedisEnabled() {
		t.Error("Redis should be disabled by default")
	}
}

func TestFromMap_Overrides(t *testing.T) {
	c, err := FromMap(map[string]string{
		"CASEDESK_HOST":        "casedesk-uat.corp.example",
		"CASEDESK_PAGE_SIZE":   "100",
		"CASEDESK_CONCURRENCY": "3",
		"CASEDESK_CACHE_TTL":   "90s",
		"LOG_LEVEL":            "DEBUG",
		"LOG_PRETTY":           "true",
	})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}

	if c.Environment.Name != "uat" {
		t.Errorf("Environment = %q, want uat", c.Environment.Name)
	}
	if c.PageSize != 100 || c.Concurrency != 3 || c.CacheTTL != 90*time.Second {
		t.Errorf("overrides not applied: %+v", c)
	}

	lc := c.Logging()
	if lc.Level != logging.LevelDebug || !lc.Pretty {
		t.Errorf("Logging() = %+v", lc)
	}
}

func TestFromMap_BaseURLWins(t *testing.T) {
	c, err := FromMap(map[string]string{
		"CASEDESK_HOST":     "casedesk-dev.corp.example",
		"CASEDESK_BASE_URL": "http://127.0.0.1:9000/api/",
	})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	if c.APIBaseURL() != "http://127.0.0.1:9000/api" {
		t.Errorf("APIBaseURL() = %q", c.APIBaseURL())
	}
	if c.Environment.Name != "custom" {
		t.Errorf("Environment = %q, want custom", c.Environment.Name)
	}
}

func TestFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"zero page size", map[string]string{"CASEDESK_PAGE_SIZE": "0"}},
		{"huge concurrency", map[string]string{"CASEDESK_CONCURRENCY": "100"}},
		{"not a number", map[string]string{"CASEDESK_PAGE_SIZE": "fifty"}},
		{"bad duration", map[string]string{"CASEDESK_CACHE_TTL": "soon"}},
		{"zero ttl", map[string]string{"CASEDESK_CACHE_TTL": "0s"}},
		{"bad base url", map[string]string{"CASEDESK_BASE_URL": "::nope"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"bad port", map[string]string{"PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromMap(tt.vars); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		url      string
		wantAddr string
		wantDB   int
	}{
		{"localhost:6379", "localhost:6379", 0},
		{"redis://cache:6380/2", "cache:6380", 2},
	}

	for _, tt := range tests {
		c := &Configuration{RedisURL: tt.url}
		opts, err := c.RedisOptions()
		if err != nil {
			t.Fatalf("RedisOptions(%q) error = %v", tt.url, err)
		}
		if opts.Addr != tt.wantAddr || opts.DB != tt.wantDB {
			t.Errorf("RedisOptions(%q) = %s db %d", tt.url, opts.Addr, opts.DB)
		}
	}

	if _, err := (&Configuration{}).RedisOptions(); err == nil {
		t.Error("empty URL should fail")
	}
}

func TestTokenPath(t *testing.T) {
	c := &Configuration{TokenFile: "/tmp/tok.json"}
	if p, _ := c.TokenPath(); p != "/tmp/tok.json" {
		t.Errorf("TokenPath() = %q", p)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("CASEDESK_TEST_ONLY_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CASEDESK_TEST_ONLY_KEY") })

	n, err := LoadEnv([]string{file, filepath.Join(dir, "missing.env")})
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if n != 1 {
		t.Errorf("LoadEnv() read %d files, want 1", n)
	}
	if got := os.Getenv("CASEDESK_TEST_ONLY_KEY"); got != "from-file" {
		t.Errorf("env value = %q", got)
	}
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("CASEDESK_PAGE_SIZE=20\nCASEDESK_CONCURRENCY=2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CASEDESK_PAGE_SIZE", "40")
	t.Cleanup(func() { os.Unsetenv("CASEDESK_CONCURRENCY") })

	c, err := Load(file)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.PageSize != 40 {
		t.Errorf("PageSize = %d, want 40 from environment", c.PageSize)
	}
	if c.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2 from file", c.Concurrency)
	}
}

func TestClientConfig(t *testing.T) {
	c, err := FromMap(map[string]string{
		"CASEDESK_BASE_URL":        "http://localhost:8081/api",
		"CASEDESK_REQUEST_TIMEOUT": "5s",
	})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}

	cfg := c.ClientConfig(client.StaticToken("t"))
	if cfg.BaseURL != "http://localhost:8081/api" || cfg.Timeout != 5*time.Second {
		t.Errorf("ClientConfig() = %+v", cfg)
	}
	if _, err := client.New(cfg); err != nil {
		t.Errorf("client.New() error = %v", err)
	}
}
