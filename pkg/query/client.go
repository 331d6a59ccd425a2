package query

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dbdev/pkg/cache"
	dberrors "github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/httputil"
	"github.com/matzehuels/dbdev/pkg/observability"
)

// ErrClosed is returned for work started on a closed client.
var ErrClosed = errors.New("query: client closed")

// Client caches query results by key and runs fetches on their behalf.
// All methods are safe for concurrent use.
type Client struct {
	mu        sync.Mutex
	entries   map[string]*entry
	observers map[string]int
	flights   map[string]*flight
	triggers  map[string]*Trigger

	defaults Options
	logger   *log.Logger

	persist    cache.Cache
	keyer      cache.Keyer
	persistTTL time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	closed bool

	active int
	idle   chan struct{}

	now func() time.Time
}

type entry struct {
	key       Key
	data      any
	updatedAt time.Time
	gcTime    time.Duration
	gcTimer   *time.Timer
}

type flight struct {
	key    Key
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	refs   int
	done   chan struct{}

	data    any
	err     error
	aborted bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaults sets the default options of every query on the client.
func WithDefaults(opts ...Option) ClientOption {
	return func(c *Client) { c.defaults = c.defaults.apply(opts) }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithPersistentCache adds a persistent tier behind the in-memory entries.
// Successful fetches are written through with ttl; a miss in memory reads
// the tier before calling the fetch function.
func WithPersistentCache(backend cache.Cache, keyer cache.Keyer, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.persist = backend
		c.keyer = keyer
		c.persistTTL = ttl
	}
}

// NewClient returns an empty client. Close releases it.
func NewClient(opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		entries:   make(map[string]*entry),
		observers: make(map[string]int),
		flights:   make(map[string]*flight),
		triggers:  make(map[string]*Trigger),
		defaults:  defaultOptions(),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.persist != nil && c.keyer == nil {
		c.keyer = cache.NewDefaultKeyer()
	}
	return c
}

// Options returns the client defaults with opts applied.
func (c *Client) Options(opts ...Option) Options {
	return c.defaults.apply(opts)
}

// Close cancels in-flight fetches and background prefetches, waits for them
// to exit and drops every entry and trigger.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	for _, f := range c.flights {
		f.cancel()
	}
	c.mu.Unlock()

	c.cancel()
	err := c.Drain(context.Background())

	c.mu.Lock()
	c.clearLocked()
	c.triggers = make(map[string]*Trigger)
	c.mu.Unlock()
	return err
}

// Reset drops every entry and cancels in-flight fetches. Open observers
// refetch under the new generation.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, f := range c.flights {
		f.cancel()
	}
	c.clearLocked()
}

func (c *Client) clearLocked() {
	for _, e := range c.entries {
		if e.gcTimer != nil {
			e.gcTimer.Stop()
		}
	}
	c.entries = make(map[string]*entry)
	c.flights = make(map[string]*flight)
}

// Drain waits until no fetch or background prefetch is running.
func (c *Client) Drain(ctx context.Context) error {
	c.mu.Lock()
	if c.active == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) beginLocked() {
	if c.active == 0 {
		c.idle = make(chan struct{})
	}
	c.active++
}

func (c *Client) end() {
	c.mu.Lock()
	c.active--
	if c.active == 0 {
		close(c.idle)
	}
	c.mu.Unlock()
}

// GetData returns the cached value for key, if any.
func GetData[T any](c *Client, key Key) (T, bool) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	var data any
	if ok {
		data = e.data
	}
	c.mu.Unlock()

	if !ok {
		var zero T
		return zero, false
	}
	v, err := decode[T](data)
	return v, err == nil
}

// SetData stores v under key as a fresh entry.
func (c *Client) SetData(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, v, c.now(), c.defaults.GCTime)
}

// Invalidate drops every entry whose key starts with prefix. Open observers
// keep their current state; the next Use or Prefetch refetches.
func (c *Client) Invalidate(ctx context.Context, prefix Key) int {
	c.mu.Lock()
	var dropped []Key
	for id, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			if e.gcTimer != nil {
				e.gcTimer.Stop()
			}
			delete(c.entries, id)
			dropped = append(dropped, e.key)
		}
	}
	c.mu.Unlock()

	if c.persist != nil {
		for _, k := range dropped {
			if err := c.persist.Delete(ctx, c.keyer.QueryKey(k.String())); err != nil {
				c.logger.Warn("persistent cache delete failed", "key", k.String(), "error", err)
			}
		}
	}
	return len(dropped)
}

func (c *Client) setLocked(key Key, data any, at time.Time, gcTime time.Duration) {
	id := key.String()
	if old, ok := c.entries[id]; ok && old.gcTimer != nil {
		old.gcTimer.Stop()
	}
	e := &entry{key: key, data: data, updatedAt: at, gcTime: gcTime}
	c.entries[id] = e
	if c.observers[id] == 0 {
		c.scheduleGCLocked(id, e)
	}
}

func (c *Client) scheduleGCLocked(id string, e *entry) {
	if e.gcTime < 0 {
		return
	}
	e.gcTimer = time.AfterFunc(e.gcTime, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.entries[id] == e && c.observers[id] == 0 {
			delete(c.entries, id)
		}
	})
}

// observe registers an observer of key and returns the current entry data
// and whether it is fresh.
func (c *Client) observe(key Key, staleTime time.Duration) (data any, fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := key.String()
	c.observers[id]++
	e, ok := c.entries[id]
	if !ok {
		return nil, false, false
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	return e.data, c.now().Sub(e.updatedAt) < staleTime, true
}

func (c *Client) unobserve(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := key.String()
	c.observers[id]--
	if c.observers[id] > 0 {
		return
	}
	delete(c.observers, id)
	if e, ok := c.entries[id]; ok && e.gcTimer == nil {
		c.scheduleGCLocked(id, e)
	}
}

func (c *Client) peek(key Key, staleTime time.Duration) (fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return false, false
	}
	return c.now().Sub(e.updatedAt) < staleTime, true
}

// join attaches the caller to the in-flight fetch of key, starting one if
// none is running in the current generation.
func (c *Client) join(ctx context.Context, key Key, fetch FetchFunc, opts Options) (*flight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	id := key.String()
	if f, ok := c.flights[id]; ok && f.gen == c.gen && f.ctx.Err() == nil {
		f.refs++
		observability.Query().OnDedupe(ctx, key.Resource())
		return f, nil
	}

	// The fetch keeps the starting caller's values, such as its access
	// token, but only the client or the last leaving caller cancels it.
	fctx, cancelFetch := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.ctx, cancelFetch)
	cancel := func() {
		stop()
		cancelFetch()
	}
	f := &flight{
		key:    key,
		gen:    c.gen,
		ctx:    fctx,
		cancel: cancel,
		refs:   1,
		done:   make(chan struct{}),
	}
	c.flights[id] = f
	c.beginLocked()
	go c.run(f, fetch, opts)
	return f, nil
}

// release detaches a caller. The last caller to leave cancels a fetch that
// is still running.
func (c *Client) release(f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.refs--
	if f.refs > 0 {
		return
	}
	select {
	case <-f.done:
	default:
		f.cancel()
		observability.Query().OnCancel(f.ctx, f.key.Resource())
		c.logger.Debug("fetch cancelled", "key", f.key.String())
	}
}

func (c *Client) run(f *flight, fetch FetchFunc, opts Options) {
	defer c.end()
	defer f.cancel()

	resource := f.key.Resource()
	hooks := observability.Query()
	hooks.OnFetchStart(f.ctx, resource)
	c.logger.Debug("fetch", "key", f.key.String())
	start := time.Now()

	data, fromPersist, err := c.fetch(f.ctx, f.key, fetch, opts)
	hooks.OnFetchComplete(f.ctx, resource, time.Since(start), err)

	c.mu.Lock()
	aborted := f.ctx.Err() != nil
	stored := false
	if err == nil && !aborted && f.gen == c.gen && !c.closed {
		c.setLocked(f.key, data, c.now(), opts.GCTime)
		stored = true
	}
	if aborted && err == nil {
		err = f.ctx.Err()
	}
	if c.flights[f.key.String()] == f {
		delete(c.flights, f.key.String())
	}
	f.data, f.err, f.aborted = data, err, aborted
	close(f.done)
	c.mu.Unlock()

	if err != nil && !aborted {
		c.logger.Debug("fetch failed", "key", f.key.String(), "error", err)
	}
	if stored && !fromPersist {
		c.writeThrough(f.key, data)
	}
}

func (c *Client) fetch(ctx context.Context, key Key, fetch FetchFunc, opts Options) (any, bool, error) {
	if data, ok := c.readThrough(ctx, key); ok {
		return data, true, nil
	}

	var data any
	err := httputil.Retry(ctx, opts.Retry+1, opts.RetryDelay, func() error {
		v, err := fetch(ctx)
		if err != nil {
			if retryable(ctx, err) {
				return httputil.Retryable(err)
			}
			return err
		}
		data = v
		return nil
	})
	var re *httputil.RetryableError
	if errors.As(err, &re) {
		err = re.Err
	}
	return data, false, err
}

// retryable excludes cancellation and errors a retry cannot fix.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch dberrors.GetCode(err) {
	case dberrors.ErrCodeValidation, dberrors.ErrCodeNotFound, dberrors.ErrCodeNotImplemented:
		return false
	}
	return true
}

func (c *Client) readThrough(ctx context.Context, key Key) (any, bool) {
	if c.persist == nil {
		return nil, false
	}
	hooks := observability.Cache()
	data, ok, err := c.persist.Get(ctx, c.keyer.QueryKey(key.String()))
	if err != nil {
		c.logger.Warn("persistent cache read failed", "key", key.String(), "error", err)
		return nil, false
	}
	if !ok {
		hooks.OnCacheMiss(ctx, "persistent")
		return nil, false
	}
	hooks.OnCacheHit(ctx, "persistent")
	return json.RawMessage(data), true
}

func (c *Client) writeThrough(key Key, v any) {
	if c.persist == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("persistent cache encode failed", "key", key.String(), "error", err)
		return
	}
	if err := c.persist.Set(c.ctx, c.keyer.QueryKey(key.String()), data, c.persistTTL); err != nil {
		c.logger.Warn("persistent cache write failed", "key", key.String(), "error", err)
		return
	}
	observability.Cache().OnCacheSet(c.ctx, "persistent", len(data))
}

// background runs fn under the client lifetime context.
func (c *Client) background(fn func(ctx context.Context)) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.beginLocked()
	c.mu.Unlock()

	go func() {
		defer c.end()
		fn(c.ctx)
	}()
	return true
}
