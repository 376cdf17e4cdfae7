package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deppfellow/users-api/internal/dberr"
	"github.com/deppfellow/users-api/internal/metrics"
	"github.com/deppfellow/users-api/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository is the MongoDB backed store of the users collection.
type UserRepository struct {
	cfg    StoreConfig
	source CollectionSource
}

var _ CRUD = (*UserRepository)(nil)

// NewUserRepository creates a UserRepository.
func NewUserRepository(cfg StoreConfig, source CollectionSource) *UserRepository {
	return &UserRepository{cfg: cfg, source: source}
}

// GetAll returns every record of the collection. The result is never nil.
func (r *UserRepository) GetAll(ctx context.Context) (users []model.User, err error) {
	const op = "getAll"
	defer r.observe(op, time.Now(), &err, nil)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	coll, err := r.source(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, r.classify(op, err, dberr.Other)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.classify(op, err, dberr.Other)
	}

	users = make([]model.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, toUser(doc))
	}
	return users, nil
}

// GetByID returns the record identified by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (user model.User, found bool, err error) {
	const op = "getById"
	defer r.observe(op, time.Now(), &err, &found)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	coll, err := r.source(ctx)
	if err != nil {
		return nil, false, err
	}

	oid, err := r.parseID(op, id)
	if err != nil {
		return nil, false, err
	}

	return r.findOne(ctx, coll, op, oid)
}

// Create inserts attrs as a new record and returns attrs with the
// assigned identifier.
func (r *UserRepository) Create(ctx context.Context, attrs model.User) (user model.User, err error) {
	const op = "create"
	defer r.observe(op, time.Now(), &err, nil)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	coll, err := r.source(ctx)
	if err != nil {
		return nil, err
	}

	res, err := coll.InsertOne(ctx, toDocument(attrs))
	if err != nil {
		return nil, r.classify(op, err, dberr.WriteFailure)
	}

	user = attrs.Without(model.IDField)
	user[model.IDField] = idString(res.InsertedID)
	return user, nil
}

// Update sets attrs on the record identified by id and returns the
// record as it is after the update. Fields missing from attrs are kept.
func (r *UserRepository) Update(ctx context.Context, id string, attrs model.User) (user model.User, found bool, err error) {
	const op = "update"
	defer r.observe(op, time.Now(), &err, &found)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	coll, err := r.source(ctx)
	if err != nil {
		return nil, false, err
	}

	oid, err := r.parseID(op, id)
	if err != nil {
		return nil, false, err
	}

	set := toDocument(attrs)
	if len(set) == 0 {
		// MongoDB rejects an empty $set; nothing changes so read instead.
		return r.findOne(ctx, coll, op, oid)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc bson.M
	err = coll.FindOneAndUpdate(ctx, bson.M{model.IDField: oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, r.classify(op, err, dberr.WriteFailure)
	}

	return toUser(doc), true, nil
}

// Delete removes the record identified by id and returns the filter that
// matched it.
func (r *UserRepository) Delete(ctx context.Context, id string) (filter model.Filter, found bool, err error) {
	const op = "delete"
	defer r.observe(op, time.Now(), &err, &found)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	coll, err := r.source(ctx)
	if err != nil {
		return nil, false, err
	}

	oid, err := r.parseID(op, id)
	if err != nil {
		return nil, false, err
	}

	res, err := coll.DeleteOne(ctx, bson.M{model.IDField: oid})
	if err != nil {
		return nil, false, r.classify(op, err, dberr.WriteFailure)
	}
	if res.DeletedCount == 0 {
		return nil, false, nil
	}

	return model.Filter{model.IDField: oid.Hex()}, true, nil
}

func (r *UserRepository) findOne(ctx context.Context, coll Collection, op string, oid primitive.ObjectID) (model.User, bool, error) {
	var doc bson.M
	err := coll.FindOne(ctx, bson.M{model.IDField: oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, r.classify(op, err, dberr.Other)
	}
	return toUser(doc), true, nil
}

// parseID converts a canonical string id into an ObjectID.
func (r *UserRepository) parseID(op, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		e := dberr.New(dberr.InvalidIdentifier, op,
			fmt.Sprintf("invalid user id %q: must be a 24 character hex string", id))
		e.Collection = r.cfg.CollectionName
		return primitive.NilObjectID, e
	}
	return oid, nil
}

func (r *UserRepository) classify(op string, err error, fallback dberr.Code) error {
	return dberr.Classify(op, r.cfg.CollectionName, err, fallback)
}

func (r *UserRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.OperationTimeout)
}

// observe records the operation outcome. found is nil for operations
// without an absent outcome.
func (r *UserRepository) observe(op string, start time.Time, err *error, found *bool) {
	outcome := metrics.OutcomeOK
	switch {
	case *err != nil:
		outcome = metrics.OutcomeError
	case found != nil && !*found:
		outcome = metrics.OutcomeAbsent
	}
	metrics.ObserveStoreOperation(op, outcome, start)
}
