package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/lattice/internal/storage"
	pkgconfig "github.com/starford/lattice/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StorageConfig
		wantErr bool
		wantDSN string
	}{
		{"sqlite default driver", StorageConfig{SQLite: SQLiteConfig{Path: "a.db"}}, false, "a.db"},
		{"sqlite missing path", StorageConfig{Driver: "sqlite"}, true, ""},
		{"postgres", StorageConfig{Driver: "postgres", Postgres: PostgresConfig{DSN: "postgres://x"}}, false, "postgres://x"},
		{"postgres missing dsn", StorageConfig{Driver: "postgres", SQLite: SQLiteConfig{Path: "a.db"}}, true, ""},
		{"unknown driver", StorageConfig{Driver: "mysql"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.cfg.DSN() != tt.wantDSN {
				t.Errorf("DSN = %q, want %q", tt.cfg.DSN(), tt.wantDSN)
			}
		})
	}
}

func TestTreeConfig(t *testing.T) {
	cfg := TreeConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Policy != "restrictive" {
		t.Errorf("policy = %q, want restrictive", cfg.Policy)
	}
	if err := (&TreeConfig{Policy: "anything"}).Validate(); err == nil {
		t.Error("unknown policy should fail")
	}
	if err := (&TreeConfig{HistoryLimit: -1}).Validate(); err == nil {
		t.Error("negative history limit should fail")
	}
}

func TestPersistAndLogStreamConfig(t *testing.T) {
	if err := (&PersistConfig{FlushInterval: time.Millisecond}).Validate(); err == nil {
		t.Error("tiny flush interval should fail")
	}
	ls := LogStreamConfig{Initial: 5 * time.Second, Max: time.Second}
	if err := ls.Validate(); err == nil {
		t.Error("max below initial should fail")
	}
	ls = LogStreamConfig{Initial: time.Second, Increment: time.Second, Max: 3 * time.Second, MaxRetries: 2}
	if err := ls.Validate(); err != nil {
		t.Fatal(err)
	}
	b := ls.Backoff()
	if b.Next() != time.Second {
		t.Error("backoff does not start at initial")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("LATTICE_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
storage:
  driver: sqlite
  sqlite:
    path: /tmp/lattice.db
auth:
  mode: token
  token: ${LATTICE_TEST_TOKEN}
tree:
  policy: unrestricted
  placeholders: true
  history_limit: 20
persist:
  flush_interval: 5s
import:
  dir: ""
logstream:
  initial: 500ms
  increment: 1s
  max: 5s
  max_retries: 2
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("app/auth = %+v %+v", cfg.App, cfg.Auth)
	}
	if cfg.Storage.Driver != storage.DriverSQLite || cfg.Storage.DSN() != "/tmp/lattice.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Tree.Policy != "unrestricted" || !cfg.Tree.Placeholders || cfg.Tree.HistoryLimit != 20 {
		t.Errorf("tree = %+v", cfg.Tree)
	}
	if cfg.Persist.FlushInterval != 5*time.Second || cfg.LogStream.Initial != 500*time.Millisecond {
		t.Errorf("durations = %v %v", cfg.Persist.FlushInterval, cfg.LogStream.Initial)
	}
	if cfg.Import.Dir != "" {
		t.Errorf("import dir = %q, want empty", cfg.Import.Dir)
	}
}
