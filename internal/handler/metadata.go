package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/deppfellow/users-api/internal/config"
	"github.com/deppfellow/users-api/internal/database"
	"github.com/deppfellow/users-api/internal/model"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
)

// MetadataSource exposes the connection state. *database.ConnectionManager
// implements it.
type MetadataSource interface {
	Connect(ctx context.Context, uri, dbName string) *mongo.Database
	Metadata() model.Metadata
}

// MetadataHandler answers OPTIONS /users with the connection metadata and
// an allow-listed view of the environment.
type MetadataHandler struct {
	Handler
	source MetadataSource
}

func NewMetadataHandler(s *server.Server, source MetadataSource) *MetadataHandler {
	return &MetadataHandler{
		Handler: NewHandler(s),
		source:  source,
	}
}

func (h *MetadataHandler) GetMetadataHandler() echo.HandlerFunc {
	return Handle(h.Handler, h.GetMetadata, http.StatusOK, newEmptyRequest)
}

// GetMetadata connects first; a failed connect still reports the metadata
// with connected=false.
func (h *MetadataHandler) GetMetadata(c echo.Context, _ *EmptyRequest) (model.MetadataEnvelope, error) {
	h.source.Connect(c.Request().Context(), "", "")

	return model.MetadataEnvelope{
		Action:   ActionGetMetadata,
		Metadata: h.source.Metadata(),
		Env:      h.environment(),
	}, nil
}

// environment lists the allow-listed variables that are set, with any
// connection string password redacted.
func (h *MetadataHandler) environment() map[string]string {
	cfg := h.server.Config

	env := map[string]string{
		"service":     config.ServiceName,
		"environment": cfg.Primary.Env,
	}
	for _, name := range cfg.Server.MetadataEnvAllowList {
		if value, ok := os.LookupEnv(name); ok {
			env[name] = database.RedactURI(value)
		}
	}
	return env
}
