package query

import "context"

// Trigger prefetches one key when fired, typically on hover intent.
type Trigger struct {
	client *Client
	key    Key
	ready  bool
	run    func(ctx context.Context) error
}

// Intent returns the trigger for def and vars on c. Identical keys on the
// same client yield the same *Trigger until the client is closed.
func Intent[V, T any](c *Client, def Definition[V, T], vars V) *Trigger {
	key := def.Key(vars)
	id := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.triggers[id]; ok {
		return t
	}
	t := &Trigger{
		client: c,
		key:    key,
		ready:  def.Ready(vars),
		run: func(ctx context.Context) error {
			return Prefetch(ctx, c, def, vars)
		},
	}
	if !c.closed {
		c.triggers[id] = t
	}
	return t
}

// Key returns the key the trigger prefetches.
func (t *Trigger) Key() Key { return t.key }

// Fire starts a background prefetch under the client lifetime. It does
// nothing when a required parameter is missing or the client is closed,
// and reports whether a prefetch was started.
func (t *Trigger) Fire() bool {
	if !t.ready {
		return false
	}
	return t.client.background(func(ctx context.Context) {
		if err := t.run(ctx); err != nil && ctx.Err() == nil {
			t.client.logger.Debug("intent prefetch failed", "key", t.key.String(), "error", err)
		}
	})
}
