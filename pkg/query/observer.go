package query

import (
	"context"
	"sync"

	"github.com/matzehuels/dbdev/pkg/observability"
)

// Status is the lifecycle state of an observer.
type Status int

const (
	// StatusIdle: the query is disabled or a required parameter is missing.
	StatusIdle Status = iota
	// StatusLoading: no data yet, a fetch is running.
	StatusLoading
	// StatusSuccess: data is available.
	StatusSuccess
	// StatusError: the last fetch failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// State is a snapshot of an observer.
type State[T any] struct {
	Data   T
	Err    error
	Status Status

	// Fetching is true while a fetch for the key is running, including a
	// background refetch of stale data.
	Fetching bool
}

// Observer watches one key on a client. Close it when the consumer goes
// away; the last observer to close cancels the key's in-flight fetch.
type Observer[T any] struct {
	client *Client
	key    Key
	opts   Options
	fetch  FetchFunc

	mu        sync.Mutex
	state     State[T]
	flight    *flight
	observing bool
	closed    bool
	settled   chan struct{}
	stop      chan struct{}
	once      sync.Once
}

// Use subscribes to def for vars. The observer is idle, with no fetch and
// no error, when the query is disabled or def is not Ready for vars.
// Cancelling ctx closes the observer.
func Use[V, T any](ctx context.Context, c *Client, def Definition[V, T], vars V, opts ...Option) *Observer[T] {
	o := &Observer[T]{
		client:  c,
		key:     def.Key(vars),
		opts:    c.Options(opts...),
		settled: make(chan struct{}),
		stop:    make(chan struct{}),
	}
	if !o.opts.Enabled || !def.Ready(vars) {
		o.state.Status = StatusIdle
		close(o.settled)
		return o
	}
	o.fetch = def.fetcher(vars)
	o.start(ctx)
	context.AfterFunc(ctx, func() { o.Close() })
	return o
}

// Key returns the observed key.
func (o *Observer[T]) Key() Key { return o.key }

// Current returns the latest state without blocking.
func (o *Observer[T]) Current() State[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Wait blocks until the observer has data or an error, or is idle, and
// returns its state. It returns ctx.Err() if ctx ends first.
func (o *Observer[T]) Wait(ctx context.Context) (State[T], error) {
	select {
	case <-o.settled:
		return o.Current(), nil
	case <-ctx.Done():
		return o.Current(), ctx.Err()
	}
}

// Close detaches the observer. It is safe to call more than once.
func (o *Observer[T]) Close() {
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		f := o.flight
		o.flight = nil
		observing := o.observing
		o.mu.Unlock()

		close(o.stop)
		if f != nil {
			o.client.release(f)
		}
		if observing {
			o.client.unobserve(o.key)
		}
	})
}

func (o *Observer[T]) start(ctx context.Context) {
	data, fresh, ok := o.client.observe(o.key, o.opts.StaleTime)
	o.observing = true

	if ok {
		v, err := o.selectData(data)
		if err == nil {
			observability.Cache().OnCacheHit(ctx, "memory")
			o.state = State[T]{Data: v, Status: StatusSuccess}
			if fresh {
				close(o.settled)
				return
			}
		}
	} else {
		observability.Cache().OnCacheMiss(ctx, "memory")
	}

	f, err := o.client.join(ctx, o.key, o.fetch, o.opts)
	if err != nil {
		o.state.Err = err
		o.state.Status = StatusError
		close(o.settled)
		return
	}
	if o.state.Status != StatusSuccess {
		o.state.Status = StatusLoading
	}
	o.state.Fetching = true
	o.flight = f
	go o.await(ctx, f)
}

func (o *Observer[T]) await(ctx context.Context, f *flight) {
	for {
		select {
		case <-f.done:
		case <-o.stop:
			return
		}

		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return
		}
		if !f.aborted {
			o.settleLocked(f)
			o.mu.Unlock()
			return
		}
		o.flight = nil
		o.mu.Unlock()

		// The fetch was aborted by a reset while this observer still wants
		// the data: follow the newer request instead of reporting the abort.
		o.client.release(f)
		next, err := o.client.join(ctx, o.key, o.fetch, o.opts)

		o.mu.Lock()
		if err != nil {
			o.flight = nil
			o.state.Err = err
			o.state.Status = StatusError
			o.state.Fetching = false
			o.settleOnce()
			o.mu.Unlock()
			return
		}
		if o.closed {
			o.mu.Unlock()
			o.client.release(next)
			return
		}
		o.flight = next
		f = next
		o.mu.Unlock()
	}
}

func (o *Observer[T]) settleLocked(f *flight) {
	o.state.Fetching = false
	if f.err != nil {
		o.state.Err = f.err
		o.state.Status = StatusError
	} else if v, err := o.selectData(f.data); err != nil {
		o.state.Err = err
		o.state.Status = StatusError
	} else {
		o.state = State[T]{Data: v, Status: StatusSuccess}
	}
	o.settleOnce()
}

func (o *Observer[T]) settleOnce() {
	select {
	case <-o.settled:
	default:
		close(o.settled)
	}
}

func (o *Observer[T]) selectData(data any) (T, error) {
	v, err := decode[T](data)
	if err != nil || o.opts.Select == nil {
		return v, err
	}
	if s, ok := o.opts.Select(v).(T); ok {
		v = s
	}
	return v, nil
}
