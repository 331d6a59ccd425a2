// Package config loads dbdev settings: built-in defaults, then the TOML
// file, then DBDEV_* environment variables. Command-line flags are bound
// on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	dberrors "github.com/matzehuels/dbdev/pkg/errors"
)

const appName = "dbdev"

// Backend names.
const (
	StorePostgREST = "postgrest"
	StoreSQLite    = "sqlite"
	StoreMongo     = "mongo"

	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"

	SessionFile   = "file"
	SessionRedis  = "redis"
	SessionMemory = "memory"

	StorageSupabase = "supabase"
	StorageS3       = "s3"
	StorageLocal    = "local"
)

// Config is the full dbdev configuration.
type Config struct {
	LogLevel string `toml:"log_level" env:"DBDEV_LOG_LEVEL"`

	Server   Server   `toml:"server"`
	Supabase Supabase `toml:"supabase"`
	Store    Store    `toml:"store"`
	Cache    Cache    `toml:"cache"`
	Session  Session  `toml:"session"`
	Storage  Storage  `toml:"storage"`
}

// Server configures the website.
type Server struct {
	Addr string `toml:"addr" env:"DBDEV_ADDR"`

	// Revalidate is how long a statically built page is served before it is
	// rebuilt. RevalidateNotFound applies to pages whose build failed.
	Revalidate         Duration `toml:"revalidate" env:"DBDEV_REVALIDATE"`
	RevalidateNotFound Duration `toml:"revalidate_not_found" env:"DBDEV_REVALIDATE_NOT_FOUND"`
}

// Supabase holds the project credentials.
type Supabase struct {
	URL       string `toml:"url" env:"DBDEV_SUPABASE_URL"`
	AnonKey   string `toml:"anon_key" env:"DBDEV_SUPABASE_ANON_KEY"`
	JWTSecret string `toml:"jwt_secret" env:"DBDEV_SUPABASE_JWT_SECRET"`
}

// Store selects the registry backend.
type Store struct {
	Backend    string `toml:"backend" env:"DBDEV_STORE"`
	SQLitePath string `toml:"sqlite_path" env:"DBDEV_SQLITE_PATH"`
	MongoURI   string `toml:"mongo_uri" env:"DBDEV_MONGO_URI"`
	MongoDB    string `toml:"mongo_database" env:"DBDEV_MONGO_DATABASE"`
}

// Cache selects the persistent query cache.
type Cache struct {
	Backend   string   `toml:"backend" env:"DBDEV_CACHE"`
	Dir       string   `toml:"dir" env:"DBDEV_CACHE_DIR"`
	RedisAddr string   `toml:"redis_addr" env:"DBDEV_REDIS_ADDR"`
	TTL       Duration `toml:"ttl" env:"DBDEV_CACHE_TTL"`
}

// Session selects where signed-in sessions are kept.
type Session struct {
	Backend string `toml:"backend" env:"DBDEV_SESSION"`
}

// Storage selects the avatar object storage.
type Storage struct {
	Backend  string `toml:"backend" env:"DBDEV_STORAGE"`
	Bucket   string `toml:"bucket" env:"DBDEV_STORAGE_BUCKET"`
	Region   string `toml:"region" env:"DBDEV_S3_REGION"`
	Endpoint string `toml:"endpoint" env:"DBDEV_S3_ENDPOINT"`
	Dir      string `toml:"dir" env:"DBDEV_STORAGE_DIR"`
	// PublicURL overrides the base URL of uploaded objects.
	PublicURL string `toml:"public_url" env:"DBDEV_STORAGE_PUBLIC_URL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: Server{
			Addr:               ":8080",
			Revalidate:         Duration(60 * time.Minute),
			RevalidateNotFound: Duration(time.Minute),
		},
		Supabase: Supabase{URL: "http://localhost:54321"},
		Store:    Store{Backend: StorePostgREST, SQLitePath: "dbdev.db", MongoDB: appName},
		Cache:    Cache{Backend: CacheFile, RedisAddr: "localhost:6379", TTL: Duration(time.Hour)},
		Session:  Session{Backend: SessionFile},
		Storage:  Storage{Backend: StorageSupabase, Bucket: "avatars", Region: "us-east-1"},
	}
}

// Load returns the defaults overlaid with the file at path, when it exists,
// and with the environment. An empty path means DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the backend names and the settings each backend needs.
func (c Config) Validate() error {
	if err := oneOf("store.backend", c.Store.Backend, StorePostgREST, StoreSQLite, StoreMongo); err != nil {
		return err
	}
	if err := oneOf("cache.backend", c.Cache.Backend, CacheFile, CacheRedis, CacheNone); err != nil {
		return err
	}
	if err := oneOf("session.backend", c.Session.Backend, SessionFile, SessionRedis, SessionMemory); err != nil {
		return err
	}
	if err := oneOf("storage.backend", c.Storage.Backend, StorageSupabase, StorageS3, StorageLocal); err != nil {
		return err
	}

	if c.Store.Backend == StorePostgREST || c.Storage.Backend == StorageSupabase {
		if err := dberrors.ValidateURL(c.Supabase.URL); err != nil {
			return dberrors.NewValidation("supabase.url", "supabase.url: %s", dberrors.UserMessage(err))
		}
	}
	if c.Store.Backend == StoreMongo && c.Store.MongoURI == "" {
		return dberrors.NewValidation("store.mongo_uri", "store.mongo_uri is required for the mongo backend")
	}
	if c.Storage.Backend == StorageS3 && c.Storage.Bucket == "" {
		return dberrors.NewValidation("storage.bucket", "storage.bucket is required for the s3 backend")
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return dberrors.NewValidation(field, "%s: unknown backend %q (want one of %v)", field, value, allowed)
}

// DefaultPath is $XDG_CONFIG_HOME/dbdev/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Dir returns the dbdev config directory using the XDG convention
// (~/.config/dbdev/).
func Dir() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// CacheDir returns the query cache directory using the XDG convention
// (~/.cache/dbdev/), unless c.Cache.Dir is set.
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if home := os.Getenv("XDG_CACHE_HOME"); home != "" {
		return filepath.Join(home, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
