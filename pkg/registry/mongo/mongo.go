// Package mongo implements a read-only registry.Store over a MongoDB
// mirror of the registry views. Each view is a collection whose documents
// use the same field names as the SQL columns.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/registry"
)

const connectTimeout = 10 * time.Second

// Store is a read-only registry.Store backed by MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ registry.Store = (*Store)(nil)

// Connect dials uri and pings the server.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Database returns the mirror database.
func (s *Store) Database() *mongo.Database { return s.db }

// Select implements registry.Store.
func (s *Store) Select(ctx context.Context, q registry.Query, dest any) error {
	if err := q.Validate(); err != nil {
		return err
	}

	filter := bson.D{}
	for _, f := range q.Filters {
		filter = append(filter, bson.E{Key: f.Column, Value: f.Value})
	}
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}})
	if len(q.Orders) > 0 {
		sort := bson.D{}
		for _, o := range q.Orders {
			dir := 1
			if o.Direction == registry.Descending {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Column, Value: dir})
		}
		opts.SetSort(sort)
	}
	if q.Range != nil {
		opts.SetSkip(int64(q.Range.From)).SetLimit(int64(q.Range.Limit()))
	}

	cur, err := s.db.Collection(q.View).Find(ctx, filter, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("find %s: %w", q.View, err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("decode %s: %w", q.View, err)
	}

	rows := make([]map[string]any, len(docs))
	for i, d := range docs {
		rows[i] = d
	}
	return registry.DecodeRows(rows, dest)
}

// Update implements registry.Store. The mirror is synced from the primary
// registry and never written by the website.
func (s *Store) Update(ctx context.Context, u registry.Update) (int64, error) {
	return 0, errors.NotImplemented("update on %s: mongo mirror is read-only", u.Table)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
