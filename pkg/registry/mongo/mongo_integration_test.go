//go:build integration

package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/matzehuels/dbdev/pkg/registry"
)

func TestMongoSelect(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	ctx := context.Background()
	s, err := Connect(ctx, uri, "dbdev_test")
	if err != nil {
		t.Skipf("mongo unavailable: %v", err)
	}
	t.Cleanup(func() {
		s.Database().Drop(context.Background())
		s.Close()
	})

	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	coll := s.Database().Collection(registry.ViewPackageVersions)
	_, err = coll.InsertMany(ctx, []any{
		bson.M{"id": "v1", "package_name": "olirice-index_advisor", "version": "0.1.0", "created_at": base},
		bson.M{"id": "v2", "package_name": "olirice-index_advisor", "version": "0.2.0", "created_at": base.Add(time.Hour), "description_md": nil},
		bson.M{"id": "x1", "package_name": "other-pkg", "version": "1.0.0", "created_at": base},
	})
	if err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}

	q := registry.From(registry.ViewPackageVersions).
		Eq("package_name", "olirice-index_advisor").
		OrderBy("created_at", registry.Descending)
	var rows []registry.PackageVersion
	if err := s.Select(ctx, q, &rows); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "v2" || rows[1].ID != "v1" {
		t.Fatalf("rows = %+v", rows)
	}
	if !rows[1].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", rows[1].CreatedAt, base)
	}
}
