package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	dberrors "github.com/matzehuels/dbdev/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() defaults error = %v", err)
	}
	if cfg.Server.Revalidate.Std() != time.Hour || cfg.Server.RevalidateNotFound.Std() != time.Minute {
		t.Errorf("revalidate = %v / %v", cfg.Server.Revalidate, cfg.Server.RevalidateNotFound)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	file := `
log_level = "debug"

[server]
addr = ":9000"
revalidate = "30m"

[store]
backend = "sqlite"
sqlite_path = "/var/lib/dbdev.db"
`
	if err := os.WriteFile(path, []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DBDEV_ADDR", ":7000")
	t.Setenv("DBDEV_CACHE_TTL", "5m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Store.Backend != StoreSQLite || cfg.Store.SQLitePath != "/var/lib/dbdev.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %q, want env override :7000", cfg.Server.Addr)
	}
	if cfg.Server.Revalidate.Std() != 30*time.Minute || cfg.Cache.TTL.Std() != 5*time.Minute {
		t.Errorf("durations = %v, %v", cfg.Server.Revalidate, cfg.Cache.TTL)
	}
	if cfg.Session.Backend != SessionFile {
		t.Errorf("unset values should keep defaults, got session %q", cfg.Session.Backend)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[server\naddr ="), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed TOML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"unknown store", func(c *Config) { c.Store.Backend = "mysql" }, "store.backend"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"unknown session", func(c *Config) { c.Session.Backend = "cookie" }, "session.backend"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.backend"},
		{"bad supabase url", func(c *Config) { c.Supabase.URL = "ftp://x" }, "supabase.url"},
		{"mongo without uri", func(c *Config) { c.Store.Backend = StoreMongo }, "store.mongo_uri"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = StorageS3; c.Storage.Bucket = "" }, "storage.bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if !dberrors.Is(err, dberrors.ErrCodeValidation) || dberrors.FieldOf(err) != tt.field {
				t.Errorf("Validate() = %v (field %q), want field %q", err, dberrors.FieldOf(err), tt.field)
			}
		})
	}

	cfg := Default()
	cfg.Store.Backend = StoreSQLite
	cfg.Storage.Backend = StorageLocal
	cfg.Supabase.URL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("sqlite+local without supabase: Validate() = %v", err)
	}
}

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	cfg := Default()
	if dir, _ := cfg.CacheDir(); dir != "/tmp/xdg/dbdev" {
		t.Errorf("CacheDir() = %q", dir)
	}
	cfg.Cache.Dir = "/srv/cache"
	if dir, _ := cfg.CacheDir(); dir != "/srv/cache" {
		t.Errorf("CacheDir() override = %q", dir)
	}
}
