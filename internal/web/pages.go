package web

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/dbdev/pkg/auth"
	"github.com/matzehuels/dbdev/pkg/data"
	dberrors "github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/profile"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
	"github.com/matzehuels/dbdev/pkg/session"
)

const (
	noticeCookie  = "dbdev_notice"
	maxAvatarSize = 5 << 20
)

// pageError renders err as an error page with the status it maps to.
func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classify(err)
	msg := dberrors.UserMessage(err)
	switch {
	case status == http.StatusNotFound:
		msg = "This page could not be found."
	case status >= http.StatusInternalServerError:
		s.logger.Error("page failed", "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "error", err)
		msg = "Something went wrong."
	}
	s.renderError(w, r, status, msg)
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.landing.get(r.Context())
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "This page could not be found.")
		return
	}

	// The built snapshot is authoritative until the next rebuild.
	client := query.NewClient(query.WithLogger(s.logger))
	defer client.Close()
	client.Hydrate(snap)
	pkgs, err := load(r.Context(), client, s.deps.Queries.PopularPackages, data.PopularPackagesVariables{},
		query.WithStaleTime(time.Duration(math.MaxInt64)))
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "landing", page{
		Title: "dbdev | " + siteTitle,
		Data: map[string]any{
			"Command":  installCommand,
			"Packages": pkgs,
		},
	})
}

// takeNotice reads and clears the one-shot notice set by a redirect.
func takeNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(noticeCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: noticeCookie, Path: "/", MaxAge: -1})
	return c.Value
}

func setNotice(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{Name: noticeCookie, Value: msg, Path: "/", MaxAge: 60, HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

func (s *Server) handlePublisher(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if err := dberrors.ValidateHandle(handle); err != nil {
		s.renderError(w, r, http.StatusNotFound, "This page could not be found.")
		return
	}
	pageNum, err := pageParam(r)
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	ctx := r.Context()
	pvars := data.ProfileVariables{Handle: handle}
	kvars := data.PackagesVariables{Handle: handle, Page: pageNum}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return query.Prefetch(gctx, s.deps.Client, s.deps.Queries.Profile, pvars) })
	g.Go(func() error { return query.Prefetch(gctx, s.deps.Client, s.deps.Queries.Packages, kvars) })
	if err := g.Wait(); err != nil {
		s.pageError(w, r, err)
		return
	}

	p, err := load(ctx, s.deps.Client, s.deps.Queries.Profile, pvars)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	pkgs, err := load(ctx, s.deps.Client, s.deps.Queries.Packages, kvars)
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	sess := SessionFromContext(ctx)
	s.render(w, r, http.StatusOK, "publisher", page{
		Title:  p.DisplayName + " | " + siteTitle,
		Notice: takeNotice(w, r),
		Data: map[string]any{
			"Profile":  p,
			"Packages": pkgs,
			"CanEdit":  sess != nil && sess.Handle() == handle,
			"HasPrev":  pageNum > 0,
			"PrevPage": pageNum - 1,
			"HasNext":  len(pkgs) == registry.DefaultPageSize,
			"NextPage": pageNum + 1,
		},
	})
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	vars := data.PackageVersionsVariables{
		Handle:      chi.URLParam(r, "handle"),
		PartialName: chi.URLParam(r, "partialName"),
	}
	versions, err := load(r.Context(), s.deps.Client, s.deps.Queries.PackageVersions, vars)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	if len(versions) == 0 {
		s.renderError(w, r, http.StatusNotFound, "This page could not be found.")
		return
	}

	fullName := registry.FullName(vars.Handle, vars.PartialName)
	s.render(w, r, http.StatusOK, "package", page{
		Title: fullName + " | " + siteTitle,
		Data: map[string]any{
			"FullName": fullName,
			"Handle":   vars.Handle,
			"Latest":   versions[0],
			"Versions": versions,
		},
	})
}

// editFlow builds the profile edit flow for the signed-in owner of handle.
func (s *Server) editFlow(ctx context.Context, handle string) *profile.EditFlow {
	deps := profile.Deps{
		Queries:  s.deps.Queries,
		Client:   s.deps.Client,
		Uploader: s.deps.Uploader,
		Logger:   s.logger,
	}
	if sess := SessionFromContext(ctx); sess != nil && s.deps.Auth != nil {
		deps.Refresher = auth.NewSessionRefresher(s.deps.Auth, s.deps.Sessions, sess.ID)
	}
	return profile.NewEditFlow(handle, deps)
}

type editView struct {
	Heading     string
	State       string
	Preview     string
	Values      profile.Values
	FieldErrors map[string]string
	FormError   string
}

func (s *Server) renderEdit(w http.ResponseWriter, r *http.Request, status int, flow *profile.EditFlow, v editView) {
	state, err := s.deps.States.Generate(r.Context(), session.DefaultStateTTL)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	v.State = state
	v.Heading = flow.Heading()
	if v.Preview == "" {
		v.Preview = flow.Preview()
	}
	s.render(w, r, status, "edit", page{Title: flow.Title(), Data: v})
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	flow := s.editFlow(r.Context(), chi.URLParam(r, "handle"))
	if err := flow.Load(r.Context()); err != nil {
		s.pageError(w, r, err)
		return
	}
	s.renderEdit(w, r, http.StatusOK, flow, editView{Values: flow.InitialValues()})
}

func (s *Server) handleEditSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize+1<<20)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.pageError(w, r, dberrors.NewValidation("avatar", "invalid form: %v", err))
		return
	}
	if ok, err := s.deps.States.Validate(ctx, r.FormValue("state")); err != nil || !ok {
		s.renderError(w, r, http.StatusForbidden, "The form has expired. Reload the page and try again.")
		return
	}

	flow := s.editFlow(ctx, chi.URLParam(r, "handle"))
	if err := flow.Load(ctx); err != nil {
		s.pageError(w, r, err)
		return
	}

	initial := flow.InitialValues()
	values := profile.Values{
		Handle:       initial.Handle,
		ContactEmail: initial.ContactEmail,
		DisplayName:  r.FormValue("displayName"),
		Bio:          r.FormValue("bio"),
	}
	view := editView{Values: values, FieldErrors: map[string]string{}}

	avatar, err := readAvatar(r)
	if err != nil {
		view.FieldErrors["avatar"] = dberrors.UserMessage(err)
		s.renderEdit(w, r, http.StatusBadRequest, flow, view)
		return
	}
	if avatar != nil {
		if err := flow.SelectAvatar(*avatar); err != nil {
			view.FieldErrors["avatar"] = dberrors.UserMessage(err)
			s.renderEdit(w, r, http.StatusBadRequest, flow, view)
			return
		}
		view.Preview, _ = flow.WaitPreview(ctx)
	}

	res := flow.Submit(ctx, values)
	switch {
	case res.FieldErrors != nil:
		for field, err := range res.FieldErrors {
			view.FieldErrors[field] = dberrors.UserMessage(err)
		}
		s.renderEdit(w, r, http.StatusBadRequest, flow, view)
	case res.FormError != "":
		view.FormError = res.FormError
		s.renderEdit(w, r, http.StatusOK, flow, view)
	case res.Redirect != "":
		setNotice(w, res.Notification)
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
	default:
		// Nothing was saved: another submit is in flight or the profile has no ID.
		view.FormError = "Your changes could not be saved. Reload the page and try again."
		s.renderEdit(w, r, http.StatusConflict, flow, view)
	}
}

// readAvatar returns the uploaded avatar, or nil when no file was chosen.
func readAvatar(r *http.Request) (*profile.Avatar, error) {
	f, hdr, err := r.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, dberrors.NewValidation("avatar", "invalid avatar upload")
	}
	defer f.Close()
	if hdr.Filename == "" || hdr.Size == 0 {
		return nil, nil
	}

	b, err := io.ReadAll(io.LimitReader(f, maxAvatarSize+1))
	if err != nil {
		return nil, dberrors.NewValidation("avatar", "invalid avatar upload")
	}
	if len(b) > maxAvatarSize {
		return nil, dberrors.NewValidation("avatar", "avatar must be at most %d MB", maxAvatarSize>>20)
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = http.DetectContentType(b)
	}
	return &profile.Avatar{Name: hdr.Filename, ContentType: ct, Data: b}, nil
}
