package web

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/dbdev/pkg/data"
	"github.com/matzehuels/dbdev/pkg/query"
)

// buildFunc builds a page's data into a dehydrated snapshot. An error marks
// the page as not found until the next rebuild.
type buildFunc func(ctx context.Context) (*query.Snapshot, error)

// staticPage serves a built snapshot and rebuilds it once it is older than
// its revalidate interval. A stale snapshot keeps being served while the
// rebuild runs; only the first request waits for a build.
type staticPage struct {
	build              buildFunc
	revalidate         time.Duration
	revalidateNotFound time.Duration
	logger             *log.Logger
	now                func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	built    bool
	snapshot *query.Snapshot
	notFound bool
	expires  time.Time
}

func newStaticPage(build buildFunc, revalidate, revalidateNotFound time.Duration, logger *log.Logger) *staticPage {
	return &staticPage{
		build:              build,
		revalidate:         revalidate,
		revalidateNotFound: revalidateNotFound,
		logger:             logger,
		now:                time.Now,
	}
}

// get returns the current snapshot, or ok=false when the last build failed.
func (p *staticPage) get(ctx context.Context) (snap *query.Snapshot, ok bool) {
	p.mu.Lock()
	built, expired := p.built, !p.now().Before(p.expires)
	snap, notFound := p.snapshot, p.notFound
	p.mu.Unlock()

	if !built {
		ch := p.group.DoChan("build", p.rebuild)
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, false
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.snapshot, !p.notFound
	}
	if expired {
		p.group.DoChan("build", p.rebuild)
	}
	return snap, !notFound
}

func (p *staticPage) rebuild() (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := p.now()
	snap, err := p.build(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.built = true
	if err != nil {
		p.logger.Warn("static build failed", "error", err, "retry_in", p.revalidateNotFound)
		p.snapshot, p.notFound = nil, true
		p.expires = p.now().Add(p.revalidateNotFound)
		return nil, nil
	}
	p.logger.Debug("static build", "queries", len(snap.Queries), "duration", p.now().Sub(start))
	p.snapshot, p.notFound = snap, false
	p.expires = p.now().Add(p.revalidate)
	return nil, nil
}

// buildLanding prefetches the popular packages on a fresh client and
// dehydrates it.
func (s *Server) buildLanding(ctx context.Context) (*query.Snapshot, error) {
	client := query.NewClient(query.WithLogger(s.logger))
	defer client.Close()

	if err := query.Prefetch(ctx, client, s.deps.Queries.PopularPackages, data.PopularPackagesVariables{}); err != nil {
		return nil, err
	}
	return client.Dehydrate()
}
