package query

import "context"

// Prefetch fetches def for vars and stores the result under the same key
// Use would derive, without subscribing. A fresh entry is not refetched and
// a running fetch for the key is joined. Missing parameters are left to the
// fetch function to reject.
func Prefetch[V, T any](ctx context.Context, c *Client, def Definition[V, T], vars V, opts ...Option) error {
	key := def.Key(vars)
	o := c.Options(opts...)
	if fresh, ok := c.peek(key, o.StaleTime); ok && fresh {
		return nil
	}

	f, err := c.join(ctx, key, def.fetcher(vars), o)
	if err != nil {
		return err
	}
	defer c.release(f)

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
