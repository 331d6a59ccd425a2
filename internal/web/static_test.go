package web

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dbdev/pkg/query"
)

func TestStaticPageRevalidates(t *testing.T) {
	var builds atomic.Int32
	fail := atomic.Bool{}
	release := make(chan struct{}, 10)
	build := func(ctx context.Context) (*query.Snapshot, error) {
		n := builds.Add(1)
		if n > 1 {
			<-release
		}
		if fail.Load() {
			return nil, errors.New("store down")
		}
		return &query.Snapshot{Queries: make([]query.DehydratedQuery, n)}, nil
	}

	now := time.Unix(0, 0)
	var clock atomic.Int64
	clock.Store(now.UnixNano())
	p := newStaticPage(build, time.Hour, time.Minute, log.New(io.Discard))
	p.now = func() time.Time { return time.Unix(0, clock.Load()) }

	ctx := context.Background()
	snap, ok := p.get(ctx)
	if !ok || len(snap.Queries) != 1 {
		t.Fatalf("first get = %v, %v", snap, ok)
	}
	if snap, _ := p.get(ctx); len(snap.Queries) != 1 || builds.Load() != 1 {
		t.Fatal("fresh page was rebuilt")
	}

	// Expired: the stale snapshot is served while a rebuild runs.
	clock.Add(int64(time.Hour))
	if snap, ok := p.get(ctx); !ok || len(snap.Queries) != 1 {
		t.Errorf("expired get = %v, %v, want stale snapshot", snap, ok)
	}
	release <- struct{}{}
	waitFor(t, func() bool {
		snap, _ := p.get(ctx)
		return snap != nil && len(snap.Queries) == 2
	})

	// A failed rebuild turns the page into not found.
	fail.Store(true)
	clock.Add(int64(time.Hour))
	p.get(ctx)
	release <- struct{}{}
	waitFor(t, func() bool {
		_, ok := p.get(ctx)
		return !ok
	})
	p.mu.Lock()
	expires := p.expires
	p.mu.Unlock()
	if want := p.now().Add(time.Minute); !expires.Equal(want) {
		t.Errorf("not-found expires = %v, want %v", expires, want)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
