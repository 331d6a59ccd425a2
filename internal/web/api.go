package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/dbdev/pkg/buildinfo"
	"github.com/matzehuels/dbdev/pkg/data"
	dberrors "github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/query"
)

// load reads def for vars through client. Variables missing a required
// parameter go straight to the fetch function, which rejects them without
// touching the store.
func load[V, T any](ctx context.Context, client *query.Client, def query.Definition[V, T], vars V, opts ...query.Option) (T, error) {
	if !def.Ready(vars) {
		return def.Fetch(ctx, vars)
	}
	obs := query.Use(ctx, client, def, vars, opts...)
	defer obs.Close()

	st, err := obs.Wait(ctx)
	if err != nil {
		return st.Data, err
	}
	return st.Data, st.Err
}

// apiError responds with err and logs failures the caller cannot act on.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := classify(err); status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "error", err)
		if status == http.StatusInternalServerError {
			err = dberrors.Unknown(err)
		}
	}
	respondError(w, r, err)
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
	Uptime string         `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, healthResponse{
		Status: "healthy",
		Build:  buildinfo.Get(),
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

func packageVersionsVars(r *http.Request) data.PackageVersionsVariables {
	q := r.URL.Query()
	return data.PackageVersionsVariables{Handle: q.Get("handle"), PartialName: q.Get("partialName")}
}

func (s *Server) handlePackageVersions(w http.ResponseWriter, r *http.Request) {
	rows, err := load(r.Context(), s.deps.Client, s.deps.Queries.PackageVersions, packageVersionsVars(r))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	respondOK(w, r, rows)
}

// handlePrefetchPackageVersions warms the cache for a package the visitor
// is about to open. It answers immediately; the fetch runs in the
// background.
func (s *Server) handlePrefetchPackageVersions(w http.ResponseWriter, r *http.Request) {
	vars := packageVersionsVars(r)
	if err := dberrors.ValidateHandle(vars.Handle); err != nil {
		s.apiError(w, r, err)
		return
	}
	if err := dberrors.ValidatePartialName(vars.PartialName); err != nil {
		s.apiError(w, r, err)
		return
	}
	t := query.Intent(s.deps.Client, s.deps.Queries.PackageVersions, vars)
	respondJSON(w, r, http.StatusAccepted, map[string]any{
		"key":     t.Key(),
		"started": t.Fire(),
	}, nil)
}

func (s *Server) handlePopularPackages(w http.ResponseWriter, r *http.Request) {
	rows, err := load(r.Context(), s.deps.Client, s.deps.Queries.PopularPackages, data.PopularPackagesVariables{})
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	respondOK(w, r, rows)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := load(r.Context(), s.deps.Client, s.deps.Queries.Profile, data.ProfileVariables{Handle: chi.URLParam(r, "handle")})
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	respondOK(w, r, p)
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	rows, err := load(r.Context(), s.deps.Client, s.deps.Queries.Packages, data.PackagesVariables{
		Handle: chi.URLParam(r, "handle"),
		Page:   page,
	})
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	respondOK(w, r, rows)
}

func pageParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("page")
	if v == "" {
		return 0, nil
	}
	page, err := strconv.Atoi(v)
	if err != nil || page < 0 {
		return 0, dberrors.NewValidation("page", "page must be a non-negative integer")
	}
	return page, nil
}
