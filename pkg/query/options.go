package query

import "time"

// Defaults for a new Client.
const (
	DefaultStaleTime  = time.Minute
	DefaultGCTime     = 5 * time.Minute
	DefaultRetryDelay = time.Second
)

// Options control one query. Unset options inherit the client defaults.
type Options struct {
	// Enabled gates the query. A disabled observer is idle.
	Enabled bool

	// StaleTime is how long a result counts as fresh. Fresh results are
	// served without a remote call.
	StaleTime time.Duration

	// GCTime is how long an unobserved result is kept. Negative keeps it
	// until the client is reset.
	GCTime time.Duration

	// Retry is the number of retries after a failed fetch.
	Retry int

	// RetryDelay is the first delay between retries. It doubles each time.
	RetryDelay time.Duration

	// Select transforms the cached value for one observer.
	Select func(any) any
}

// Option overrides one field of Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Enabled:    true,
		StaleTime:  DefaultStaleTime,
		GCTime:     DefaultGCTime,
		RetryDelay: DefaultRetryDelay,
	}
}

// WithEnabled gates the query.
func WithEnabled(enabled bool) Option {
	return func(o *Options) { o.Enabled = enabled }
}

// WithStaleTime sets the freshness window.
func WithStaleTime(d time.Duration) Option {
	return func(o *Options) { o.StaleTime = d }
}

// WithGCTime sets how long an unobserved result is kept.
func WithGCTime(d time.Duration) Option {
	return func(o *Options) { o.GCTime = d }
}

// WithRetry sets the number of retries after a failed fetch.
func WithRetry(n int) Option {
	return func(o *Options) { o.Retry = n }
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithSelect transforms the cached value seen by one observer. The cached
// entry itself is left untouched.
func WithSelect[T any](fn func(T) T) Option {
	return func(o *Options) {
		o.Select = func(v any) any {
			t, ok := v.(T)
			if !ok {
				return v
			}
			return fn(t)
		}
	}
}

func (o Options) apply(opts []Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
