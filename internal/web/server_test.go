package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dbdev/pkg/data"
	dberrors "github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
	"github.com/matzehuels/dbdev/pkg/registry/memory"
	"github.com/matzehuels/dbdev/pkg/session"
	"github.com/matzehuels/dbdev/pkg/storage"
)

// countingStore counts selects and can be switched to fail.
type countingStore struct {
	*memory.Store
	selects atomic.Int32
	fail    atomic.Bool
}

func (s *countingStore) Select(ctx context.Context, q registry.Query, dest any) error {
	s.selects.Add(1)
	if s.fail.Load() {
		return dberrors.Wrap(dberrors.ErrCodeNetwork, errors.New("connection refused"), "select %s", q.View)
	}
	return s.Store.Select(ctx, q, dest)
}

type testEnv struct {
	srv       *Server
	store     *countingStore
	sessions  *session.MemoryStore
	avatarDir string
}

var day = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	m := memory.New()
	seed := func(view string, rows any) {
		t.Helper()
		if err := m.Seed(view, rows); err != nil {
			t.Fatal(err)
		}
	}
	seed(registry.ViewPackageVersions, []registry.PackageVersion{
		{ID: "v1", PackageName: "olirice-index_advisor", Version: "0.1.0", CreatedAt: day},
		{ID: "v2", PackageName: "olirice-index_advisor", Version: "0.2.1", CreatedAt: day.Add(48 * time.Hour)},
	})
	seed(registry.ViewPopularPackages, []registry.Package{
		{ID: "p1", PackageName: "olirice-index_advisor", Handle: "olirice", PartialName: "index_advisor", Downloads: 90},
		{ID: "p2", PackageName: "supabase-pg_graphql", Handle: "supabase", PartialName: "pg_graphql", Downloads: 30},
	})
	seed(registry.ViewPackages, []registry.Package{
		{ID: "p1", PackageName: "olirice-index_advisor", Handle: "olirice", PartialName: "index_advisor", CreatedAt: day},
	})
	seed(registry.TableProfiles, []registry.Profile{
		{ID: "u1", Handle: "olirice", Type: registry.ProfileUser, DisplayName: "Oliver Rice", ContactEmail: "oli@example.com"},
		{ID: "o1", Handle: "supabase", Type: registry.ProfileOrganization, DisplayName: "Supabase"},
	})

	store := &countingStore{Store: m}
	client := query.NewClient()
	t.Cleanup(func() { client.Close() })

	avatarDir := t.TempDir()
	uploader, err := storage.NewLocal(avatarDir, "/avatars")
	if err != nil {
		t.Fatal(err)
	}
	sessions := session.NewMemoryStore()
	srv, err := New(DefaultConfig(), Deps{
		Queries:   data.New(store),
		Client:    client,
		Sessions:  sessions,
		States:    session.NewMemoryStateStore(),
		Uploader:  uploader,
		AvatarDir: avatarDir,
		Logger:    log.New(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{srv: srv, store: store, sessions: sessions, avatarDir: avatarDir}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

// signIn stores a session for handle and returns its cookie.
func (e *testEnv) signIn(t *testing.T, handle string) *http.Cookie {
	t.Helper()
	sess, err := session.New(session.Tokens{AccessToken: "at"}, &session.User{ID: "u1", Handle: handle}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	e.sessions.Set(context.Background(), sess)
	return &http.Cookie{Name: sessionCookie, Value: sess.ID}
}

type envelope struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON: %v: %s", err, w.Body.String())
	}
	return env
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.get(t, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Status != "ok" || !strings.HasPrefix(env.RequestID, "req_") {
		t.Errorf("envelope = %+v", env)
	}
	if w.Header().Get("X-Request-ID") != env.RequestID {
		t.Errorf("X-Request-ID = %q, want %q", w.Header().Get("X-Request-ID"), env.RequestID)
	}
}

func TestPackageVersionsAPI(t *testing.T) {
	e := newTestEnv(t)

	w := e.get(t, "/api/package-versions?handle=olirice&partialName=index_advisor")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var rows []registry.PackageVersion
	json.Unmarshal(decodeEnvelope(t, w).Data, &rows)
	if len(rows) != 2 || rows[0].Version != "0.2.1" {
		t.Errorf("rows = %+v, want newest first", rows)
	}

	before := e.store.selects.Load()
	e.get(t, "/api/package-versions?handle=olirice&partialName=index_advisor")
	if got := e.store.selects.Load(); got != before {
		t.Errorf("second request hit the store (%d selects), want cache hit", got-before)
	}
}

func TestPackageVersionsAPIMissingParam(t *testing.T) {
	e := newTestEnv(t)
	w := e.get(t, "/api/package-versions?handle=olirice")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != dberrors.ErrCodeValidation || env.Error.Field != "partialName" {
		t.Errorf("error = %+v", env.Error)
	}
	if n := e.store.selects.Load(); n != 0 {
		t.Errorf("selects = %d, want 0", n)
	}
}

func TestProfileAPI(t *testing.T) {
	e := newTestEnv(t)
	if w := e.get(t, "/api/profiles/olirice"); w.Code != http.StatusOK {
		t.Errorf("known profile status = %d", w.Code)
	}
	w := e.get(t, "/api/profiles/nobody")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing profile status = %d, want 404", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error.Code != dberrors.ErrCodeNotFound {
		t.Errorf("code = %q", env.Error.Code)
	}
}

func TestStoreFailureIsBadGateway(t *testing.T) {
	e := newTestEnv(t)
	e.store.fail.Store(true)
	if w := e.get(t, "/api/popular-packages"); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestPackagesAPIPaging(t *testing.T) {
	e := newTestEnv(t)
	if w := e.get(t, "/api/profiles/olirice/packages?page=x"); w.Code != http.StatusBadRequest {
		t.Errorf("bad page status = %d, want 400", w.Code)
	}
	w := e.get(t, "/api/profiles/olirice/packages?page=1")
	var rows []registry.Package
	json.Unmarshal(decodeEnvelope(t, w).Data, &rows)
	if len(rows) != 0 {
		t.Errorf("page 1 = %+v, want empty", rows)
	}
}

func TestPrefetchPackageVersions(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/prefetch/package-versions?handle=olirice&partialName=index_advisor", nil)
	w := e.do(t, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.srv.deps.Client.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	key := query.DeriveKey(data.ResourcePackageVersions, "olirice", "index_advisor")
	if _, ok := query.GetData[[]registry.PackageVersion](e.srv.deps.Client, key); !ok {
		t.Error("prefetch did not populate the cache")
	}

	before := e.store.selects.Load()
	e.get(t, "/api/package-versions?handle=olirice&partialName=index_advisor")
	if got := e.store.selects.Load(); got != before {
		t.Error("query after prefetch hit the store")
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/prefetch/package-versions?handle=olirice", nil)
	if w := e.do(t, bad); w.Code != http.StatusBadRequest {
		t.Errorf("missing partialName status = %d, want 400", w.Code)
	}
}

func TestLanding(t *testing.T) {
	e := newTestEnv(t)
	w := e.get(t, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{
		"<title>dbdev | The Database Package Manager</title>",
		"Popular packages",
		"olirice-index_advisor",
		"supabase-pg_graphql",
		"-o ./migrations -s extensions -v 0.2.1 package -n",
		"data-copy=\"install-command\"",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("landing page missing %q", want)
		}
	}

	before := e.store.selects.Load()
	e.get(t, "/")
	if got := e.store.selects.Load(); got != before {
		t.Errorf("second landing render hit the store %d times, want 0", got-before)
	}
}

func TestLandingBuildFailureIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	e.store.fail.Store(true)
	if w := e.get(t, "/"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestPublisherAndPackagePages(t *testing.T) {
	e := newTestEnv(t)

	w := e.get(t, "/olirice")
	if w.Code != http.StatusOK {
		t.Fatalf("publisher status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Oliver Rice | The Database Package Manager") {
		t.Error("publisher title missing")
	}

	w = e.get(t, "/olirice/index_advisor")
	if w.Code != http.StatusOK {
		t.Fatalf("package status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "0.2.1") {
		t.Error("package page missing latest version")
	}

	if w := e.get(t, "/nobody"); w.Code != http.StatusNotFound {
		t.Errorf("unknown publisher status = %d", w.Code)
	}
	if w := e.get(t, "/olirice/missing"); w.Code != http.StatusNotFound {
		t.Errorf("unknown package status = %d", w.Code)
	}
}

func TestEditRequiresOwner(t *testing.T) {
	e := newTestEnv(t)

	w := e.get(t, "/olirice/edit")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/sign-in?next=%2Folirice%2Fedit" {
		t.Errorf("anonymous: status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/olirice/edit", nil)
	req.AddCookie(e.signIn(t, "supabase"))
	if w := e.do(t, req); w.Code != http.StatusForbidden {
		t.Errorf("other user: status = %d, want 403", w.Code)
	}
}

var stateRe = `name="state" value="`

func formState(t *testing.T, body string) string {
	t.Helper()
	i := strings.Index(body, stateRe)
	if i < 0 {
		t.Fatal("edit form has no state token")
	}
	rest := body[i+len(stateRe):]
	return rest[:strings.IndexByte(rest, '"')]
}

func editRequest(t *testing.T, cookie *http.Cookie, fields map[string]string, avatar []byte) *http.Request {
	t.Helper()
	return editRequestFor(t, "olirice", cookie, fields, avatar)
}

func editRequestFor(t *testing.T, handle string, cookie *http.Cookie, fields map[string]string, avatar []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if avatar != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
		h.Set("Content-Type", "image/png")
		part, _ := mw.CreatePart(h)
		part.Write(avatar)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/"+handle+"/edit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	return req
}

func TestEditFlow(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.signIn(t, "olirice")

	req := httptest.NewRequest(http.MethodGet, "/olirice/edit", nil)
	req.AddCookie(cookie)
	w := e.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET edit status = %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"Edit user", "Oliver Rice | The Database Package Manager", `accept="image/jpeg, image/png"`, "oli@example.com"} {
		if !strings.Contains(body, want) {
			t.Errorf("edit form missing %q", want)
		}
	}

	w = e.do(t, editRequest(t, cookie, map[string]string{
		"state":       formState(t, body),
		"displayName": "Oli",
		"bio":         "Postgres things",
	}, []byte("\x89PNG\r\n\x1a\n")))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/olirice" {
		t.Fatalf("POST edit: status = %d, Location = %q: %s", w.Code, w.Header().Get("Location"), w.Body.String())
	}

	p, err := data.GetProfile(context.Background(), e.store.Store, data.ProfileVariables{Handle: "olirice"})
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Oli" || p.Bio != "Postgres things" || !strings.HasPrefix(p.AvatarURL, "/avatars/olirice/avatar-") {
		t.Errorf("profile = %+v", p)
	}
	files, _ := filepath.Glob(filepath.Join(e.avatarDir, "olirice", "avatar-*.png"))
	if len(files) != 1 {
		t.Errorf("uploaded files = %v", files)
	}
	if b, _ := os.ReadFile(files[0]); !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Error("uploaded avatar content mismatch")
	}

	// The redirect target shows the notice once and the updated profile.
	follow := httptest.NewRequest(http.MethodGet, "/olirice", nil)
	for _, c := range w.Result().Cookies() {
		follow.AddCookie(c)
	}
	w = e.do(t, follow)
	if !strings.Contains(w.Body.String(), "Successfully updated profile!") {
		t.Error("publisher page missing success notice")
	}
	if !strings.Contains(w.Body.String(), "Oli |") {
		t.Error("publisher page shows the stale profile")
	}
}

func TestEditRejectsReusedState(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.signIn(t, "olirice")

	req := httptest.NewRequest(http.MethodGet, "/olirice/edit", nil)
	req.AddCookie(cookie)
	state := formState(t, e.do(t, req).Body.String())

	fields := map[string]string{"state": state, "displayName": "Oli"}
	if w := e.do(t, editRequest(t, cookie, fields, nil)); w.Code != http.StatusSeeOther {
		t.Fatalf("first submit status = %d", w.Code)
	}
	if w := e.do(t, editRequest(t, cookie, fields, nil)); w.Code != http.StatusForbidden {
		t.Errorf("reused state status = %d, want 403", w.Code)
	}
}

func TestEditValidation(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.signIn(t, "olirice")

	req := httptest.NewRequest(http.MethodGet, "/olirice/edit", nil)
	req.AddCookie(cookie)
	state := formState(t, e.do(t, req).Body.String())

	w := e.do(t, editRequest(t, cookie, map[string]string{"state": state, "displayName": "  "}, nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Display name is required") {
		t.Error("missing display name error")
	}
}

func TestEditWithoutProfileIDRendersForm(t *testing.T) {
	e := newTestEnv(t)
	if err := e.store.Seed(registry.TableProfiles, []registry.Profile{
		{Handle: "ghost", Type: registry.ProfileUser, DisplayName: "Ghost"},
	}); err != nil {
		t.Fatal(err)
	}
	cookie := e.signIn(t, "ghost")

	req := httptest.NewRequest(http.MethodGet, "/ghost/edit", nil)
	req.AddCookie(cookie)
	w := e.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET edit status = %d: %s", w.Code, w.Body.String())
	}

	w = e.do(t, editRequestFor(t, "ghost", cookie, map[string]string{
		"state":       formState(t, w.Body.String()),
		"displayName": "Ghost",
	}, nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "Your changes could not be saved") {
		t.Error("missing form error")
	}
	if strings.Contains(body, "This page could not be found.") {
		t.Error("rendered the not-found page")
	}
	// The re-rendered form carries a fresh state token.
	formState(t, body)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{dberrors.NewValidation("handle", "handle is required"), http.StatusBadRequest},
		{dberrors.NotFound("missing"), http.StatusNotFound},
		{dberrors.NotImplemented("read-only"), http.StatusNotImplemented},
		{dberrors.New(dberrors.ErrCodeNetwork, "down"), http.StatusBadGateway},
		{&dberrors.RateLimitedError{RetryAfter: 3}, http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := classify(tt.err); got != tt.status {
			t.Errorf("classify(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}
