package memory

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/dbdev/pkg/registry"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	versions := []registry.PackageVersion{
		{ID: "v1", PackageName: "olirice-index_advisor", Version: "0.1.0", CreatedAt: base},
		{ID: "v3", PackageName: "olirice-index_advisor", Version: "0.2.1", CreatedAt: base.Add(48 * time.Hour)},
		{ID: "v2", PackageName: "olirice-index_advisor", Version: "0.2.0", CreatedAt: base.Add(24 * time.Hour)},
		{ID: "x1", PackageName: "langchain-embedding_search", Version: "1.0.0", CreatedAt: base},
	}
	if err := s.Seed(registry.ViewPackageVersions, versions); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	return s
}

func TestSelectFilterAndOrder(t *testing.T) {
	s := seeded(t)
	q := registry.From(registry.ViewPackageVersions).
		Eq("package_name", "olirice-index_advisor").
		OrderBy("created_at", registry.Descending)

	var rows []registry.PackageVersion
	if err := s.Select(context.Background(), q, &rows); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	var got []string
	for _, r := range rows {
		got = append(got, r.ID)
	}
	want := []string{"v3", "v2", "v1"}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestSelectNoRows(t *testing.T) {
	s := seeded(t)
	q := registry.From(registry.ViewPackageVersions).Eq("package_name", "nobody-nothing")

	var rows []registry.PackageVersion
	if err := s.Select(context.Background(), q, &rows); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %#v, want empty non-nil", rows)
	}
}

func TestSelectRange(t *testing.T) {
	s := seeded(t)
	q := registry.From(registry.ViewPackageVersions).
		OrderBy("id", registry.Ascending).
		WithRange(registry.GetPagination(1, 3))

	var rows []registry.PackageVersion
	if err := s.Select(context.Background(), q, &rows); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "x1" {
		t.Errorf("rows = %+v, want [x1]", rows)
	}
}

func TestSelectCancelled(t *testing.T) {
	s := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var rows []registry.PackageVersion
	err := s.Select(ctx, registry.From(registry.ViewPackageVersions), &rows)
	if err != context.Canceled {
		t.Errorf("Select() error = %v, want context.Canceled", err)
	}
}

func TestUpdate(t *testing.T) {
	s := New()
	if err := s.Seed(registry.TableProfiles, []registry.Profile{{ID: "p1", Handle: "olirice", DisplayName: "Oli"}}); err != nil {
		t.Fatal(err)
	}
	n, err := s.Update(context.Background(), registry.Update{
		Table:   registry.TableProfiles,
		Filters: []registry.Filter{{Column: "handle", Value: "olirice"}},
		Set:     map[string]any{"display_name": "Oliver", "bio": "hi"},
	})
	if err != nil || n != 1 {
		t.Fatalf("Update() = %d, %v", n, err)
	}

	var rows []registry.Profile
	if err := s.Select(context.Background(), registry.From(registry.TableProfiles).Eq("handle", "olirice"), &rows); err != nil {
		t.Fatal(err)
	}
	if rows[0].DisplayName != "Oliver" || rows[0].Bio != "hi" {
		t.Errorf("profile = %+v", rows[0])
	}
}
