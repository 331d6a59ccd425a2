package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/dbdev/internal/config"
	"github.com/matzehuels/dbdev/pkg/auth"
	"github.com/matzehuels/dbdev/pkg/cache"
	"github.com/matzehuels/dbdev/pkg/httputil"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
	"github.com/matzehuels/dbdev/pkg/registry/mongo"
	"github.com/matzehuels/dbdev/pkg/registry/postgrest"
	"github.com/matzehuels/dbdev/pkg/registry/sqlite"
	"github.com/matzehuels/dbdev/pkg/session"
	"github.com/matzehuels/dbdev/pkg/storage"
)

// supabaseHTTP returns the HTTP client for the Supabase REST APIs.
func (c *CLI) supabaseHTTP() *httputil.Client {
	return httputil.NewClient(map[string]string{"apikey": c.cfg.Supabase.AnonKey}).
		WithRetry(3, 500*time.Millisecond)
}

// openStore opens the configured registry backend. Requests carry the
// caller's access token when the context has one.
func (c *CLI) openStore(ctx context.Context) (registry.Store, error) {
	cfg := c.cfg.Store
	switch cfg.Backend {
	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, c.Logger)
	case config.StoreMongo:
		return mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return postgrest.New(c.cfg.Supabase.URL, c.cfg.Supabase.AnonKey,
			postgrest.WithHTTPClient(c.supabaseHTTP()),
			postgrest.WithToken(auth.AccessToken),
		)
	}
}

// openCache opens the persistent query cache.
func (c *CLI) openCache(ctx context.Context) (cache.Cache, error) {
	switch c.cfg.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{Addr: c.cfg.Cache.RedisAddr})
	default:
		dir, err := c.cfg.CacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	}
}

// newQueryClient returns a query client backed by the persistent cache,
// scoped to the registry backend so backends never share entries.
func (c *CLI) newQueryClient(backend cache.Cache) *query.Client {
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), c.cfg.Store.Backend)
	return query.NewClient(
		query.WithLogger(c.Logger),
		query.WithPersistentCache(backend, keyer, c.cfg.Cache.TTL.Std()),
	)
}

// openSessions opens the session store used by the website.
func (c *CLI) openSessions(ctx context.Context) (session.Store, session.StateStore, error) {
	switch c.cfg.Session.Backend {
	case config.SessionRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.cfg.Cache.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return session.NewRedisStore(rdb), session.NewRedisStateStore(rdb), nil
	case config.SessionMemory:
		return session.NewMemoryStore(), session.NewMemoryStateStore(), nil
	default:
		dir, err := config.Dir()
		if err != nil {
			return nil, nil, err
		}
		store, err := session.NewFileStore(filepath.Join(dir, "sessions"))
		if err != nil {
			return nil, nil, err
		}
		return store, session.NewMemoryStateStore(), nil
	}
}

// openUploader opens the avatar storage. The returned directory is set for
// the local backend, which the website serves itself.
func (c *CLI) openUploader(ctx context.Context) (storage.Uploader, string, error) {
	cfg := c.cfg.Storage
	switch cfg.Backend {
	case config.StorageS3:
		up, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PublicURL: cfg.PublicURL,
		})
		return up, "", err
	case config.StorageLocal:
		dir := cfg.Dir
		if dir == "" {
			cacheDir, err := c.cfg.CacheDir()
			if err != nil {
				return nil, "", err
			}
			dir = filepath.Join(cacheDir, "avatars")
		}
		base := cfg.PublicURL
		if base == "" {
			base = "/avatars"
		}
		up, err := storage.NewLocal(dir, base)
		return up, dir, err
	default:
		up, err := storage.NewSupabase(c.cfg.Supabase.URL, c.cfg.Supabase.AnonKey, cfg.Bucket, c.supabaseHTTP(), auth.AccessToken)
		return up, "", err
	}
}

// authClient returns the GoTrue client, or nil when the registry is not
// backed by Supabase.
func (c *CLI) authClient() (*auth.Client, error) {
	if c.cfg.Supabase.AnonKey == "" && c.cfg.Store.Backend != config.StorePostgREST {
		return nil, nil
	}
	return auth.NewClient(c.cfg.Supabase.URL, c.cfg.Supabase.AnonKey, c.supabaseHTTP())
}
