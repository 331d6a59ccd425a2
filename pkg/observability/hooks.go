// Package observability lets the query client, the cache tiers and the HTTP
// client report events without depending on a metrics backend.
//
// Libraries emit events through the getters:
//
//	observability.Query().OnFetchStart(ctx, resource)
//	// ... fetch ...
//	observability.Query().OnFetchComplete(ctx, resource, duration, err)
//
// Only main installs hooks, once at startup. The prom subpackage provides a
// Prometheus implementation:
//
//	observability.Register(prom.New(prometheus.DefaultRegisterer))
//
// Until then every hook is a no-op.
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// QueryHooks receives events from the query client.
type QueryHooks interface {
	// OnFetchStart records the start of a remote fetch for a resource.
	OnFetchStart(ctx context.Context, resource string)

	// OnFetchComplete records the outcome of a remote fetch.
	OnFetchComplete(ctx context.Context, resource string, duration time.Duration, err error)

	// OnDedupe records a caller joining an already in-flight fetch.
	OnDedupe(ctx context.Context, resource string)

	// OnCancel records a fetch aborted because nobody waits for it anymore.
	OnCancel(ctx context.Context, resource string)
}

// CacheHooks receives events from cache tiers ("memory", "file", "redis").
type CacheHooks interface {
	OnCacheHit(ctx context.Context, tier string)
	OnCacheMiss(ctx context.Context, tier string)
	OnCacheSet(ctx context.Context, tier string, size int)
}

// HTTPHooks receives events from outgoing HTTP calls.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records a transport failure; HTTP error statuses go to
	// OnResponse.
	OnError(ctx context.Context, method, host, path string, err error)
}

type NoopQueryHooks struct{}

func (NoopQueryHooks) OnFetchStart(context.Context, string)                          {}
func (NoopQueryHooks) OnFetchComplete(context.Context, string, time.Duration, error) {}
func (NoopQueryHooks) OnDedupe(context.Context, string)                              {}
func (NoopQueryHooks) OnCancel(context.Context, string)                              {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// hookSet is swapped as a whole so readers never take a lock.
type hookSet struct {
	query QueryHooks
	cache CacheHooks
	http  HTTPHooks
}

var (
	current atomic.Pointer[hookSet]
	noop    = hookSet{NoopQueryHooks{}, NoopCacheHooks{}, NoopHTTPHooks{}}
)

func init() { Reset() }

func load() *hookSet { return current.Load() }

func update(fn func(*hookSet)) {
	for {
		old := current.Load()
		next := *old
		fn(&next)
		if current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Register installs h for every hook interface it implements and reports
// whether it implements any.
func Register(h any) bool {
	var ok bool
	update(func(s *hookSet) {
		if q, is := h.(QueryHooks); is {
			s.query, ok = q, true
		}
		if c, is := h.(CacheHooks); is {
			s.cache, ok = c, true
		}
		if x, is := h.(HTTPHooks); is {
			s.http, ok = x, true
		}
	})
	return ok
}

// SetQueryHooks installs h. A nil h is ignored.
func SetQueryHooks(h QueryHooks) {
	if h != nil {
		update(func(s *hookSet) { s.query = h })
	}
}

// SetCacheHooks installs h. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(s *hookSet) { s.cache = h })
	}
}

// SetHTTPHooks installs h. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(s *hookSet) { s.http = h })
	}
}

func Query() QueryHooks { return load().query }
func Cache() CacheHooks { return load().cache }
func HTTP() HTTPHooks   { return load().http }

// Reset restores the no-op hooks.
func Reset() {
	s := noop
	current.Store(&s)
}
