package repository

import (
	"github.com/deppfellow/users-api/internal/server"
)

// Repositories is a container for all repository instances.
//
// It is built once at startup and handed to the service layer, so
// services depend on the container instead of on the database.
type Repositories struct {
	Users *UserRepository
}

// NewRepositories constructs the repository container.
//
// Every repository shares the server's ConnectionManager (s.DB); none of
// them connects here, the first operation does.
func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Users: NewUserRepository(StoreConfig{
			CollectionName:   s.Config.Database.Collection,
			OperationTimeout: s.Config.Database.OperationTimeout,
		}, FromManager(s.DB)),
	}
}
