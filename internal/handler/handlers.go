package handler

import (
	"github.com/deppfellow/users-api/internal/server"
	"github.com/deppfellow/users-api/internal/service"
)

// Handlers is a container that groups all HTTP handlers, so router setup
// receives one object instead of many.
type Handlers struct {
	Health   *HealthHandler   // Health serves GET /status.
	OpenAPI  *OpenAPIHandler  // OpenAPI serves the docs UI.
	Users    *UserHandler     // Users serves the /users CRUD routes.
	Metadata *MetadataHandler // Metadata serves OPTIONS /users.
}

// NewHandlers constructs the handler container.
func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(s),
		OpenAPI:  NewOpenAPIHandler(s),
		Users:    NewUserHandler(s, services.Users),
		Metadata: NewMetadataHandler(s, s.DB),
	}
}
