// Package router initializes the HTTP router (using Echo).
//
// It registers the middlewares and defines the API route groups,
// mapping specific paths to their corresponding handlers.
package router

import (
	"github.com/deppfellow/users-api/internal/handler"
	"github.com/deppfellow/users-api/internal/lib/codec"
	"github.com/deppfellow/users-api/internal/middleware"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/labstack/echo/v4"
)

// NewRouter builds the echo instance serving the whole API.
//
// Middleware order matters:
//   - the request id exists before tracing and the context logger use it
//   - the New Relic transaction exists before EnhanceTracing and the
//     context logger read it
//   - rate limiting runs inside logging and metrics, so a 429 carries a
//     request id, is logged and is counted
//   - recovery wraps the handler itself
func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	mw := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.JSONSerializer = codec.Serializer{}
	router.HTTPErrorHandler = mw.Global.GlobalErrorHandler

	router.Use(
		mw.Global.CORS(),
		mw.Global.Secure(),
		middleware.RequestID(),
		mw.Tracing.NewRelicMiddleware(),
		mw.Tracing.EnhanceTracing(),
		mw.ContextEnhancer.EnhanceContext(),
		mw.Global.RequestLogger(),
		middleware.Metrics(),
		mw.RateLimit.Limit(),
		mw.Global.Recover(),
	)

	registerSystemRoutes(router, h)
	registerUserRoutes(router, h)

	return router
}

// registerUserRoutes registers the users CRUD endpoints.
//
//	OPTIONS /users      -> metadata
//	GET     /users      -> getAll
//	POST    /users      -> create
//	GET     /users/:id  -> getById
//	PUT     /users/:id  -> update
//	DELETE  /users/:id  -> delete
func registerUserRoutes(r *echo.Echo, h *handler.Handlers) {
	users := r.Group("/users")

	users.OPTIONS("", h.Metadata.GetMetadataHandler())
	users.GET("", h.Users.GetAllHandler())
	users.POST("", h.Users.CreateHandler())

	users.GET("/:id", h.Users.GetByIDHandler())
	users.PUT("/:id", h.Users.UpdateHandler())
	users.DELETE("/:id", h.Users.DeleteHandler())
}
