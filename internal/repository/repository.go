// Package repository handles all interactions with the database.
//
// It contains the MongoDB queries and the methods to fetch, persist
// or update records, abstracting driver types (ObjectIDs, BSON documents)
// away from the service layer: everything above this package only sees
// model.User values with canonical string ids.
package repository

import (
	"context"
	"time"

	"github.com/deppfellow/users-api/internal/database"
	"github.com/deppfellow/users-api/internal/model"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CRUD is the record store contract used by the service layer.
//
// Absence is reported through the bool result, never as an error.
type CRUD interface {
	GetAll(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, id string) (model.User, bool, error)
	Create(ctx context.Context, attrs model.User) (model.User, error)
	Update(ctx context.Context, id string, attrs model.User) (model.User, bool, error)
	Delete(ctx context.Context, id string) (model.Filter, bool, error)
}

// Collection is the subset of *mongo.Collection the repositories use.
type Collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// CollectionSource resolves the collection for one operation. It is
// called on every operation so that a lost connection is retried.
type CollectionSource func(ctx context.Context) (Collection, error)

// FromManager adapts a ConnectionManager into a CollectionSource.
func FromManager(m *database.ConnectionManager) CollectionSource {
	return func(ctx context.Context) (Collection, error) {
		coll, err := m.Collection(ctx)
		if err != nil {
			return nil, err
		}
		return coll, nil
	}
}

// StoreConfig holds the per-store settings.
type StoreConfig struct {
	CollectionName   string
	OperationTimeout time.Duration
}
