package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testSession(t *testing.T, ttl time.Duration) *Session {
	t.Helper()
	sess, err := New(Tokens{AccessToken: "at", RefreshToken: "rt"}, &User{ID: "u1", Handle: "olirice"}, ttl)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sess
}

func TestNew(t *testing.T) {
	sess := testSession(t, time.Hour)
	if sess.ID == "" || sess.IsExpired() || sess.Handle() != "olirice" {
		t.Errorf("session = %+v", sess)
	}
	other := testSession(t, time.Hour)
	if other.ID == sess.ID {
		t.Error("GenerateID() repeated an ID")
	}
	var nilSess *Session
	if nilSess.Handle() != "" {
		t.Error("Handle() on nil session")
	}
}

func TestStores(t *testing.T) {
	file, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   file,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := testSession(t, time.Hour)
			if err := store.Set(ctx, sess); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err := store.Get(ctx, sess.ID)
			if err != nil || got == nil {
				t.Fatalf("Get() = %v, %v", got, err)
			}
			if got.Tokens.RefreshToken != "rt" || got.Handle() != "olirice" {
				t.Errorf("Get() = %+v", got)
			}

			if err := store.Delete(ctx, sess.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if got, _ := store.Get(ctx, sess.ID); got != nil {
				t.Error("Get() after Delete returned a session")
			}

			expired := testSession(t, -time.Minute)
			store.Set(ctx, expired)
			if got, _ := store.Get(ctx, expired.ID); got != nil {
				t.Error("Get() returned an expired session")
			}
			if err := store.Cleanup(ctx); err != nil {
				t.Errorf("Cleanup() error = %v", err)
			}
		})
	}
}

func TestFileStoreIgnoresPathSeparators(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := store.sessionPath("../../etc/passwd"); filepath.Dir(got) != dir {
		t.Errorf("sessionPath() escaped the base dir: %s", got)
	}
}

func TestFileStoreCleanup(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	live := testSession(t, time.Hour)
	expired := testSession(t, -time.Minute)
	for _, sess := range []*Session{live, expired} {
		if err := store.Set(ctx, sess); err != nil {
			t.Fatal(err)
		}
	}
	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := store.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	for path, want := range map[string]bool{
		store.sessionPath(live.ID):    true,
		store.sessionPath(expired.ID): false,
		corrupt:                       false,
	} {
		_, err := os.Stat(path)
		if got := err == nil; got != want {
			t.Errorf("%s exists = %v, want %v", filepath.Base(path), got, want)
		}
	}
}

func TestCLIStore(t *testing.T) {
	dir := t.TempDir()
	cli, err := NewCLIStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if sess, err := cli.GetSession(ctx); err != nil || sess != nil {
		t.Fatalf("GetSession() on empty store = %v, %v", sess, err)
	}
	if err := cli.SaveSession(ctx, testSession(t, time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cli.Path()); err != nil {
		t.Errorf("session file missing: %v", err)
	}
	sess, err := cli.GetSession(ctx)
	if err != nil || sess == nil || sess.ID != cliSessionID {
		t.Fatalf("GetSession() = %+v, %v", sess, err)
	}
	if err := cli.DeleteSession(ctx); err != nil {
		t.Fatal(err)
	}
	if sess, _ := cli.GetSession(ctx); sess != nil {
		t.Error("session survived DeleteSession")
	}
}

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStateStore()

	state, err := s.Generate(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Validate(ctx, state); !ok {
		t.Error("Validate() rejected a fresh state")
	}
	if ok, _ := s.Validate(ctx, state); ok {
		t.Error("Validate() accepted a state twice")
	}
	if ok, _ := s.Validate(ctx, "forged"); ok {
		t.Error("Validate() accepted an unknown state")
	}

	expired, _ := s.Generate(ctx, -time.Second)
	if ok, _ := s.Validate(ctx, expired); ok {
		t.Error("Validate() accepted an expired state")
	}
}
