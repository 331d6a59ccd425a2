package cache

// ScopedKeyer prefixes every key of an inner Keyer with "{scope}:". Several
// deployments, or registry backends, can share one Redis without reading
// each other's query state.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner (the DefaultKeyer when nil).
func NewScopedKeyer(inner Keyer, scope string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: scope + ":"}
}

func (k *ScopedKeyer) QueryKey(queryKey string) string {
	return k.prefix + k.inner.QueryKey(queryKey)
}

func (k *ScopedKeyer) SnapshotKey(name string) string {
	return k.prefix + k.inner.SnapshotKey(name)
}
