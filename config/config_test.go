package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfstamp.json")
	body := `{
		"server": {"addr": ":9000", "shutdown_grace": "3s"},
		"cache": {"host": "redis", "ttl": 60},
		"ledger": {"type": "pgsql", "host": "db", "port": 5432}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PDFSTAMP_LEDGER_PORT", "6543")
	t.Setenv("PDFSTAMP_VALIDATE", "true")
	t.Setenv("PDFSTAMP_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	want.Server.Addr = ":9000"
	want.Server.ShutdownGrace = Duration(3 * time.Second)
	want.Cache.Host = "redis"
	want.Cache.TTL = Duration(time.Minute)
	want.Ledger = Ledger{Type: "pgsql", Host: "db", Port: 6543}
	want.ValidateOutput = true
	want.Log.Format = "json"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PDFSTAMP_CACHE_PORT", "not-a-port")
	if _, err := Load(""); err == nil {
		t.Fatal("expected env parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Ledger.Type = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown ledger accepted")
	}
	cfg = Default()
	cfg.Auth.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("auth without key accepted")
	}
}

func TestLoadValidateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"validate": true}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.ValidateOutput {
		t.Fatal("validate flag not read from file")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"layout": {"font_size": 10, "line_height": 1.5}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Layout{FontSize: 10, LineHeight: 1.5}, cfg.Layout); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}

	cfg.Layout.FontSize = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative font size accepted")
	}
}
