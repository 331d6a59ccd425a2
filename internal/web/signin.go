package web

import (
	"net/http"
	"strings"

	"github.com/matzehuels/dbdev/pkg/auth"
	"github.com/matzehuels/dbdev/pkg/session"
)

type signInView struct {
	Next  string
	Email string
	Error string
}

// safeNext keeps post-sign-in redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}

func (s *Server) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signin", page{
		Title: "Sign in | " + siteTitle,
		Data:  signInView{Next: safeNext(r.URL.Query().Get("next"))},
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := signInView{Next: safeNext(r.FormValue("next")), Email: r.FormValue("email")}
	fail := func(status int, msg string) {
		view.Error = msg
		s.render(w, r, status, "signin", page{Title: "Sign in | " + siteTitle, Data: view})
	}
	if s.deps.Auth == nil {
		fail(http.StatusNotImplemented, "Sign-in is not configured.")
		return
	}

	tokens, user, err := s.deps.Auth.SignInWithPassword(ctx, view.Email, r.FormValue("password"))
	if err != nil {
		s.logger.Debug("sign-in failed", "email", view.Email, "error", err)
		fail(http.StatusUnauthorized, "Invalid email or password.")
		return
	}
	if len(s.deps.JWTSecret) > 0 {
		claims, err := auth.ParseClaims(tokens.AccessToken, s.deps.JWTSecret)
		if err != nil {
			s.logger.Warn("rejected access token", "error", err)
			fail(http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		if user.Handle == "" {
			user.Handle = claims.Handle()
		}
	}

	sess, err := session.New(tokens, user, session.DefaultTTL)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	if err := s.deps.Sessions.Set(ctx, sess); err != nil {
		s.pageError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, view.Next, http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sess := SessionFromContext(ctx); sess != nil {
		if s.deps.Auth != nil {
			if err := s.deps.Auth.SignOut(ctx, sess.Tokens.AccessToken); err != nil {
				s.logger.Warn("sign-out failed", "error", err)
			}
		}
		if err := s.deps.Sessions.Delete(ctx, sess.ID); err != nil {
			s.logger.Warn("delete session failed", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
