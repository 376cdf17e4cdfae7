package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/deppfellow/users-api/internal/database"
	"github.com/deppfellow/users-api/internal/model"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestUserRepository_MongoDB runs the store against a real MongoDB started
// with dockertest. Requires Docker; enable with USERS_INTEGRATION=1.
func TestUserRepository_MongoDB(t *testing.T) {
	if os.Getenv("USERS_INTEGRATION") != "1" {
		t.Skip("set USERS_INTEGRATION=1 to run against a MongoDB container")
	}

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "could not connect to docker")

	tag := os.Getenv("USERS_MONGO_TEST_TAG")
	if tag == "" {
		tag = "7.0"
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        tag,
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	require.NoError(t, err, "could not start mongo")
	t.Cleanup(func() { _ = pool.Purge(resource) })

	uri := fmt.Sprintf("mongodb://localhost:%s", resource.GetPort("27017/tcp"))

	logger := zerolog.Nop()
	manager := database.NewConnectionManager(database.Options{
		URI:            uri,
		DBName:         "security_test",
		CollectionName: "users",
		ConnectTimeout: 5 * time.Second,
	}, &logger)
	t.Cleanup(func() { _ = manager.Close(context.Background()) })

	pool.MaxWait = time.Minute
	require.NoError(t, pool.Retry(func() error {
		return manager.Ping(context.Background())
	}), "mongo not ready")

	ctx := context.Background()
	coll, err := manager.Collection(ctx)
	require.NoError(t, err)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	require.NoError(t, err)

	repo := NewUserRepository(StoreConfig{
		CollectionName:   "users",
		OperationTimeout: 5 * time.Second,
	}, FromManager(manager))

	users, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	created, err := repo.Create(ctx, model.User{"name": "Ada", "email": "ada@x.io", "age": int64(36)})
	require.NoError(t, err)
	assert.Regexp(t, hexID, created.ID())

	got, found, err := repo.GetByID(ctx, created.ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created, got)

	_, err = repo.Create(ctx, model.User{"name": "Ada again", "email": "ada@x.io"})
	require.Error(t, err)
	assert.Equal(t, "A user with this email already exists", err.Error())

	updated, found, err := repo.Update(ctx, created.ID(), model.User{"email": "new@x.io"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ada", updated["name"])
	assert.Equal(t, "new@x.io", updated["email"])
	assert.Equal(t, int64(36), updated["age"])

	filter, found, err := repo.Delete(ctx, created.ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.Filter{"_id": created.ID()}, filter)

	_, found, err = repo.Delete(ctx, created.ID())
	require.NoError(t, err)
	assert.False(t, found)
}
