package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dbdev/pkg/cache"
	"github.com/matzehuels/dbdev/pkg/registry"
	"github.com/matzehuels/dbdev/pkg/registry/sqlite"
)

// isolate points every XDG directory at a temporary directory so tests
// never touch the user's config, cache or sessions.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	for _, name := range []string{"DBDEV_STORE", "DBDEV_CACHE", "DBDEV_CACHE_DIR", "DBDEV_LOG_LEVEL"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := New(io.Discard, log.InfoLevel).RootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := New(io.Discard, log.InfoLevel).RootCommand()
	want := []string{"serve", "versions", "popular", "profile", "cache", "auth", "open", "completion"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestCachePathFollowsConfig(t *testing.T) {
	dir := isolate(t)

	got, err := run(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if want := filepath.Join(dir, "cache", "dbdev"); strings.TrimSpace(got) != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}

	cfgPath := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(cfgPath, []byte("[cache]\ndir = \"/tmp/dbdev-test-cache\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = run(t, "--config", cfgPath, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if strings.TrimSpace(got) != "/tmp/dbdev-test-cache" {
		t.Errorf("cache path = %q, want the configured dir", got)
	}
}

func TestSetupRejectsInvalidFlag(t *testing.T) {
	isolate(t)
	if _, err := run(t, "--store", "oracle", "cache", "path"); err == nil {
		t.Fatal("expected an error for an unknown store backend")
	}
}

func TestCacheClear(t *testing.T) {
	dir := isolate(t)
	fc, err := cache.NewFileCache(filepath.Join(dir, "cache", "dbdev"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := fc.Set(ctx, "query:profile", []byte(`{}`), time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if _, ok, _ := fc.Get(ctx, "query:profile"); ok {
		t.Error("entry still cached after clear")
	}
}

func TestVersionsCommandJSON(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "registry.db")
	st, err := sqlite.Open(context.Background(), dbPath, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	const insert = `INSERT INTO package_versions (id, package_id, package_name, version, created_at) VALUES (?, ?, ?, ?, ?)`
	for _, row := range [][]any{
		{"v1", "p1", "olirice-index_advisor", "0.1.0", "2023-01-01T00:00:00Z"},
		{"v2", "p1", "olirice-index_advisor", "0.2.0", "2023-01-02T00:00:00Z"},
	} {
		if _, err := st.DB().Exec(insert, row...); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()
	t.Setenv("DBDEV_SQLITE_PATH", dbPath)

	out, err := run(t, "--store", "sqlite", "--cache", "none", "versions", "olirice", "index_advisor", "--json")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	var got []registry.PackageVersion
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 2 || got[0].Version != "0.2.0" {
		t.Errorf("versions = %+v, want 0.2.0 first", got)
	}
}

func TestVersionsCommandValidates(t *testing.T) {
	dir := isolate(t)
	t.Setenv("DBDEV_SQLITE_PATH", filepath.Join(dir, "registry.db"))
	if _, err := run(t, "--store", "sqlite", "--cache", "none", "versions", "olirice", ""); err == nil {
		t.Fatal("expected a validation error for an empty partial name")
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		name    string
		site    string
		args    []string
		want    string
		wantErr bool
	}{
		{"publisher", "https://database.dev", []string{"olirice"}, "https://database.dev/olirice", false},
		{"package", "https://database.dev/", []string{"olirice", "index_advisor"}, "https://database.dev/olirice/index_advisor", false},
		{"bad handle", "https://database.dev", []string{"../etc"}, "", true},
		{"bad site", "file:///tmp", []string{"olirice"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pageURL(tt.site, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("pageURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("pageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"VERSION", "PUBLISHED"}, [][]string{
		{"0.2.1", "Jan 3, 2023"},
		{"0.10.0"},
	})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if col := strings.Index(lines[0], "PUBLISHED"); col != strings.Index(lines[1], "Jan") {
		t.Errorf("columns not aligned:\n%s", out)
	}
	if strings.TrimSpace(lines[2]) != "0.10.0" {
		t.Errorf("short row = %q", lines[2])
	}
}

func TestTokenStatus(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := tokenStatus(now.Add(90*time.Second), now); got != "valid for 1m30s" {
		t.Errorf("tokenStatus() = %q", got)
	}
	if got := tokenStatus(now, now); !strings.HasPrefix(got, "expired") {
		t.Errorf("tokenStatus() = %q, want expired", got)
	}
}

func TestPrompt(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("me@example.com\nhunter2"))
	var out bytes.Buffer

	email, err := prompt(&out, in, "Email: ")
	if err != nil || email != "me@example.com" {
		t.Fatalf("prompt() = %q, %v", email, err)
	}
	password, err := prompt(&out, in, "Password: ")
	if err != nil || password != "hunter2" {
		t.Fatalf("prompt() = %q, %v", password, err)
	}
	if _, err := prompt(&out, in, "Again: "); err == nil {
		t.Error("prompt() at EOF should fail")
	}
	if out.String() != "Email: Password: Again: " {
		t.Errorf("labels = %q", out.String())
	}
}
