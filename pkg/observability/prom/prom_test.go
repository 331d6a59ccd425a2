package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountFetches(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	ctx := context.Background()

	m.OnFetchComplete(ctx, "package-versions", 10*time.Millisecond, nil)
	m.OnFetchComplete(ctx, "package-versions", 10*time.Millisecond, errors.New("boom"))
	m.OnDedupe(ctx, "package-versions")

	if got := testutil.ToFloat64(m.fetches.WithLabelValues("package-versions", "ok")); got != 1 {
		t.Errorf("ok fetches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.fetches.WithLabelValues("package-versions", "error")); got != 1 {
		t.Errorf("error fetches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dedupes.WithLabelValues("package-versions")); got != 1 {
		t.Errorf("dedupes = %v, want 1", got)
	}
}

func TestMetricsCache(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ctx := context.Background()

	m.OnCacheHit(ctx, "memory")
	m.OnCacheMiss(ctx, "redis")
	m.OnCacheSet(ctx, "redis", 512)

	if got := testutil.ToFloat64(m.cacheHits.WithLabelValues("memory")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cacheBytes.WithLabelValues("redis")); got != 512 {
		t.Errorf("bytes = %v, want 512", got)
	}
}
