package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/deppfellow/users-api/internal/dberr"
	"github.com/deppfellow/users-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{24}$`)

func newTestRepository() (*UserRepository, *fakeCollection) {
	coll := newFakeCollection()
	repo := NewUserRepository(StoreConfig{
		CollectionName:   "users",
		OperationTimeout: time.Second,
	}, coll.source())
	return repo, coll
}

func TestCreate_ReturnsAttributesWithCanonicalID(t *testing.T) {
	repo, _ := newTestRepository()

	user, err := repo.Create(context.Background(), model.User{"name": "Ada", "email": "ada@x.io"})
	require.NoError(t, err)

	assert.Regexp(t, hexID, user.ID())
	assert.Equal(t, "Ada", user["name"])
	assert.Equal(t, "ada@x.io", user["email"])
	assert.Len(t, user, 3)
}

func TestCreate_IgnoresClientSuppliedID(t *testing.T) {
	repo, coll := newTestRepository()

	user, err := repo.Create(context.Background(), model.User{"_id": "mine", "name": "Ada"})
	require.NoError(t, err)

	assert.NotEqual(t, "mine", user.ID())
	assert.Regexp(t, hexID, user.ID())
	require.Len(t, coll.docs, 1)
	assert.IsType(t, primitive.ObjectID{}, coll.docs[0]["_id"])
}

func TestCreateThenGetByID_RoundTrips(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	tests := []struct {
		name  string
		attrs model.User
	}{
		{"strings", model.User{"name": "Ada", "email": "ada@x.io"}},
		{"mixed scalars", model.User{"name": "Grace", "age": int64(85), "score": 9.5, "active": true, "nickname": nil}},
		{"empty", model.User{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := repo.Create(ctx, tt.attrs)
			require.NoError(t, err)

			got, found, err := repo.GetByID(ctx, created.ID())
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, created, got)
		})
	}
}

func TestGetByID_NestedValuesAreNormalized(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, model.User{
		"address": map[string]interface{}{"city": "London"},
		"tags":    []interface{}{"a", "b"},
	})
	require.NoError(t, err)

	got, found, err := repo.GetByID(ctx, created.ID())
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, map[string]interface{}{"city": "London"}, got["address"])
	assert.Equal(t, []interface{}{"a", "b"}, got["tags"])
}

func TestGetByID_Absent(t *testing.T) {
	repo, _ := newTestRepository()

	user, found, err := repo.GetByID(context.Background(), primitive.NewObjectID().Hex())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, user)
}

func TestInvalidIdentifier(t *testing.T) {
	repo, coll := newTestRepository()
	ctx := context.Background()

	calls := map[string]func(id string) error{
		"getById": func(id string) error {
			_, _, err := repo.GetByID(ctx, id)
			return err
		},
		"update": func(id string) error {
			_, _, err := repo.Update(ctx, id, model.User{"name": "x"})
			return err
		},
		"delete": func(id string) error {
			_, _, err := repo.Delete(ctx, id)
			return err
		},
	}

	for op, call := range calls {
		for _, id := range []string{"not-a-valid-id", "", "123", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
			t.Run(op+"/"+id, func(t *testing.T) {
				err := call(id)
				require.Error(t, err)

				var dbErr *dberr.Error
				require.True(t, errors.As(err, &dbErr))
				assert.Equal(t, dberr.InvalidIdentifier, dbErr.Code)
				assert.Equal(t, op, dbErr.Op)
				assert.Equal(t, "users", dbErr.Collection)
				assert.Contains(t, dbErr.Message, "invalid user id")
			})
		}
	}

	assert.Zero(t, coll.updates)
}

func TestGetAll(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	users, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	a, err := repo.Create(ctx, model.User{"name": "Ada"})
	require.NoError(t, err)
	b, err := repo.Create(ctx, model.User{"name": "Grace"})
	require.NoError(t, err)

	users, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.User{a, b}, users)
}

func TestUpdate_PartialKeepsOtherFields(t *testing.T) {
	repo, coll := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, model.User{"name": "Ada", "email": "ada@x.io"})
	require.NoError(t, err)

	updated, found, err := repo.Update(ctx, created.ID(), model.User{"email": "new@x.io"})
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, model.User{"_id": created.ID(), "name": "Ada", "email": "new@x.io"}, updated)
	assert.Equal(t, options.After, coll.lastReturns)
	assert.Equal(t, bson.M{"$set": bson.M{"email": "new@x.io"}}, coll.lastUpdate)

	got, _, err := repo.GetByID(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestUpdate_IgnoresIDAttribute(t *testing.T) {
	repo, coll := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, model.User{"name": "Ada"})
	require.NoError(t, err)

	updated, found, err := repo.Update(ctx, created.ID(), model.User{"_id": "other", "name": "Ada L."})
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, created.ID(), updated.ID())
	assert.Equal(t, "Ada L.", updated["name"])
	assert.Equal(t, bson.M{"$set": bson.M{"name": "Ada L."}}, coll.lastUpdate)
}

func TestUpdate_EmptyAttributesReadsCurrentState(t *testing.T) {
	repo, coll := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, model.User{"name": "Ada"})
	require.NoError(t, err)

	got, found, err := repo.Update(ctx, created.ID(), model.User{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created, got)
	assert.Zero(t, coll.updates)

	_, found, err = repo.Update(ctx, primitive.NewObjectID().Hex(), model.User{"_id": "x"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdate_Absent(t *testing.T) {
	repo, _ := newTestRepository()

	user, found, err := repo.Update(context.Background(), primitive.NewObjectID().Hex(), model.User{"name": "x"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, user)
}

func TestDelete(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, model.User{"name": "Ada"})
	require.NoError(t, err)

	filter, found, err := repo.Delete(ctx, created.ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.Filter{"_id": created.ID()}, filter)

	_, found, err = repo.GetByID(ctx, created.ID())
	require.NoError(t, err)
	assert.False(t, found)

	filter, found, err = repo.Delete(ctx, created.ID())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, filter)
}

func TestNotConnected(t *testing.T) {
	repo := NewUserRepository(StoreConfig{CollectionName: "users"}, func(ctx context.Context) (Collection, error) {
		return nil, dberr.ErrNotConnected
	})
	ctx := context.Background()
	id := primitive.NewObjectID().Hex()

	_, err := repo.GetAll(ctx)
	assert.Equal(t, dberr.ServiceUnavailable, dberr.ErrCode(err))

	_, _, err = repo.GetByID(ctx, id)
	assert.Equal(t, dberr.ServiceUnavailable, dberr.ErrCode(err))

	_, err = repo.Create(ctx, model.User{"name": "Ada"})
	assert.Equal(t, dberr.ServiceUnavailable, dberr.ErrCode(err))

	_, _, err = repo.Update(ctx, id, model.User{"name": "Ada"})
	assert.Equal(t, dberr.ServiceUnavailable, dberr.ErrCode(err))

	_, _, err = repo.Delete(ctx, id)
	assert.Equal(t, dberr.ServiceUnavailable, dberr.ErrCode(err))
}

func TestOperationTimeoutIsApplied(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool

	coll := newFakeCollection()
	repo := NewUserRepository(StoreConfig{CollectionName: "users", OperationTimeout: 50 * time.Millisecond},
		func(ctx context.Context) (Collection, error) {
			deadline, hasDeadline = ctx.Deadline()
			return coll, nil
		})

	before := time.Now()
	_, err := repo.GetAll(context.Background())
	require.NoError(t, err)

	require.True(t, hasDeadline)
	assert.WithinDuration(t, before.Add(50*time.Millisecond), deadline, 50*time.Millisecond)
}

func TestDriverErrorsAreClassified(t *testing.T) {
	duplicate := mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: `E11000 duplicate key error collection: security.users index: email_1 dup key: { email: "ada@x.io" }`,
	}}}
	id := primitive.NewObjectID().Hex()

	tests := []struct {
		name   string
		method string
		err    error
		call   func(repo *UserRepository) error
		want   dberr.Code
	}{
		{
			name:   "insert rejected",
			method: "InsertOne",
			err:    errors.New("document failed validation"),
			call: func(repo *UserRepository) error {
				_, err := repo.Create(context.Background(), model.User{"name": "Ada"})
				return err
			},
			want: dberr.WriteFailure,
		},
		{
			name:   "duplicate email",
			method: "InsertOne",
			err:    duplicate,
			call: func(repo *UserRepository) error {
				_, err := repo.Create(context.Background(), model.User{"email": "ada@x.io"})
				return err
			},
			want: dberr.DuplicateKey,
		},
		{
			name:   "update rejected",
			method: "FindOneAndUpdate",
			err:    errors.New("update failed"),
			call: func(repo *UserRepository) error {
				_, _, err := repo.Update(context.Background(), id, model.User{"name": "x"})
				return err
			},
			want: dberr.WriteFailure,
		},
		{
			name:   "delete rejected",
			method: "DeleteOne",
			err:    errors.New("delete failed"),
			call: func(repo *UserRepository) error {
				_, _, err := repo.Delete(context.Background(), id)
				return err
			},
			want: dberr.WriteFailure,
		},
		{
			name:   "find failed",
			method: "Find",
			err:    errors.New("cursor failed"),
			call: func(repo *UserRepository) error {
				_, err := repo.GetAll(context.Background())
				return err
			},
			want: dberr.Other,
		},
		{
			name:   "read timed out",
			method: "FindOne",
			err:    context.DeadlineExceeded,
			call: func(repo *UserRepository) error {
				_, _, err := repo.GetByID(context.Background(), id)
				return err
			},
			want: dberr.Timeout,
		},
		{
			name:   "client disconnected",
			method: "FindOne",
			err:    mongo.ErrClientDisconnected,
			call: func(repo *UserRepository) error {
				_, _, err := repo.GetByID(context.Background(), id)
				return err
			},
			want: dberr.ServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, coll := newTestRepository()
			coll.errs[tt.method] = tt.err

			err := tt.call(repo)
			require.Error(t, err)
			assert.Equal(t, tt.want, dberr.ErrCode(err))
		})
	}
}

func TestDuplicateKeyIsWriteFailure(t *testing.T) {
	repo, coll := newTestRepository()
	coll.errs["InsertOne"] = mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: `E11000 duplicate key error collection: security.users index: email_1 dup key: { email: "ada@x.io" }`,
	}}}

	_, err := repo.Create(context.Background(), model.User{"email": "ada@x.io"})

	var dbErr *dberr.Error
	require.True(t, errors.As(err, &dbErr))
	assert.True(t, dbErr.IsWriteFailure())
	assert.Equal(t, "A user with this email already exists", dbErr.Message)
}

func TestRepeatedReadsAreIdentical(t *testing.T) {
	repo, _ := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, model.User{"name": "Ada", "age": int64(36)})
	require.NoError(t, err)

	first, _, err := repo.GetByID(ctx, created.ID())
	require.NoError(t, err)
	second, _, err := repo.GetByID(ctx, created.ID())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
