// Package web serves the dbdev website: the landing page, publisher and
// package pages, the profile edit form and a small JSON API over the same
// registry queries.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/dbdev/pkg/auth"
	"github.com/matzehuels/dbdev/pkg/data"
	"github.com/matzehuels/dbdev/pkg/observability/prom"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/session"
	"github.com/matzehuels/dbdev/pkg/storage"
)

// Deps are the collaborators of the server. Queries, Client, Sessions and
// States are required.
type Deps struct {
	Queries  *data.Queries
	Client   *query.Client
	Sessions session.Store
	States   session.StateStore

	// Auth signs users in and refreshes their sessions. Without it sign-in
	// is unavailable and edits skip the session refresh.
	Auth      *auth.Client
	JWTSecret []byte
	Uploader  storage.Uploader
	// AvatarDir, when set, is served under /avatars/ for the local uploader.
	AvatarDir string

	Logger *log.Logger
}

// Config tunes page caching.
type Config struct {
	// Revalidate is how long a built landing page is served before it is
	// rebuilt; RevalidateNotFound applies when the build failed.
	Revalidate         time.Duration
	RevalidateNotFound time.Duration
	// SecureCookies marks session cookies Secure.
	SecureCookies bool
}

// DefaultConfig matches the hosted site: landing page rebuilt hourly, a
// failed build retried after a minute.
func DefaultConfig() Config {
	return Config{Revalidate: 60 * time.Minute, RevalidateNotFound: time.Minute}
}

// Server is the dbdev website.
type Server struct {
	router    chi.Router
	deps      Deps
	config    Config
	logger    *log.Logger
	pages     *templates
	landing   *staticPage
	startTime time.Time
}

// New creates a server with all routes registered.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		router:    chi.NewRouter(),
		deps:      deps,
		config:    cfg,
		logger:    deps.Logger.WithPrefix("web"),
		pages:     pages,
		startTime: time.Now(),
	}
	s.landing = newStaticPage(s.buildLanding, cfg.Revalidate, cfg.RevalidateNotFound, s.logger)
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(s.sessionMiddleware)

	r.Handle("/metrics", prom.Handler())
	if s.deps.AvatarDir != "" {
		r.Handle("/avatars/*", http.StripPrefix("/avatars/", http.FileServer(http.Dir(s.deps.AvatarDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/package-versions", s.handlePackageVersions)
		r.Get("/popular-packages", s.handlePopularPackages)
		r.Get("/profiles/{handle}", s.handleProfile)
		r.Get("/profiles/{handle}/packages", s.handlePackages)
		r.Post("/prefetch/package-versions", s.handlePrefetchPackageVersions)
	})

	r.Get("/", s.handleLanding)
	r.Get("/sign-in", s.handleSignInForm)
	r.Post("/sign-in", s.handleSignIn)
	r.Post("/sign-out", s.handleSignOut)

	r.Route("/{handle}", func(r chi.Router) {
		r.Get("/", s.handlePublisher)
		r.With(s.requireOwner).Get("/edit", s.handleEditForm)
		r.With(s.requireOwner).Post("/edit", s.handleEditSubmit)
		r.Get("/{partialName}", s.handlePackage)
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
