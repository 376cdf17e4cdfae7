package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/deppfellow/users-api/internal/config"
	"github.com/deppfellow/users-api/internal/dberr"
	"github.com/deppfellow/users-api/internal/errs"
	"github.com/deppfellow/users-api/internal/middleware"
	"github.com/deppfellow/users-api/internal/model"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/deppfellow/users-api/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
)

// Handler is the base handler type that holds shared application dependencies.
//
// It is embedded by concrete handlers (UserHandler, HealthHandler, ...) so they can
// access shared resources via *server.Server (config, logger, db, redis, job).
type Handler struct {
	server *server.Server
}

// NewHandler constructs a base Handler.
func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// --- Generic typed handler plumbing -----------------------------------------

// HandlerFunc represents a typed endpoint function that:
//
// - receives a validated request payload (Req)
// - returns a response (Res) or an error
//
// Req must satisfy validation.Validatable and is typically a pointer type,
// e.g. *UserIDRequest, because binding mutates it.
type HandlerFunc[Req validation.Validatable, Res any] func(c echo.Context, req Req) (Res, error)

// ActionFunc is a typed endpoint function over a record: found is false
// when the record does not exist.
type ActionFunc[Req validation.Validatable, Res any] func(c echo.Context, req Req) (result Res, found bool, err error)

// ResponseHandler defines how the outcome of a handler is written to the
// HTTP response, and how observability attributes are attached for it.
type ResponseHandler interface {
	// Handle writes the HTTP response for the given result.
	Handle(c echo.Context, result interface{}) error

	// HandleAbsent writes the response for a missing record.
	HandleAbsent(c echo.Context) error

	// HandleError either renders err or returns it to the global error handler.
	HandleError(c echo.Context, err error) error

	// GetOperation returns an operation name used for structured logging.
	GetOperation() string

	// AddAttributes attaches New Relic attributes based on response type and/or result.
	AddAttributes(txn *newrelic.Transaction, result interface{})
}

// JSONResponseHandler writes JSON responses with a given status code.
// Errors are left to the global error handler.
type JSONResponseHandler struct {
	status int
}

func (h JSONResponseHandler) Handle(c echo.Context, result interface{}) error {
	return c.JSON(h.status, result)
}

func (h JSONResponseHandler) HandleAbsent(c echo.Context) error {
	return errs.NewNotFoundError("Resource not found", false, nil)
}

func (h JSONResponseHandler) HandleError(c echo.Context, err error) error {
	return err
}

func (h JSONResponseHandler) GetOperation() string {
	return "handler"
}

func (h JSONResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {
	// http.status_code is already set by tracing middleware (EnhanceTracing).
}

// NotFoundMessage is rendered when the requested user does not exist.
const NotFoundMessage = "User not found"

// EnvelopeResponseHandler renders every outcome of a users endpoint as a
// model.Envelope named after action. It never returns an error to the
// global error handler.
type EnvelopeResponseHandler struct {
	action              string
	status              int
	invalidIDStatus     int
	malformedBodyStatus int
}

func (h EnvelopeResponseHandler) Handle(c echo.Context, result interface{}) error {
	return c.JSON(h.status, model.Envelope{Action: h.action, Data: result})
}

func (h EnvelopeResponseHandler) HandleAbsent(c echo.Context) error {
	return c.JSON(http.StatusNotFound, model.Envelope{Action: h.action, Message: NotFoundMessage})
}

func (h EnvelopeResponseHandler) HandleError(c echo.Context, err error) error {
	return c.JSON(h.errorStatus(err), model.Envelope{Action: h.action, Error: errorDescription(err)})
}

func (h EnvelopeResponseHandler) GetOperation() string {
	return "handler_" + h.action
}

func (h EnvelopeResponseHandler) AddAttributes(txn *newrelic.Transaction, result interface{}) {
	if txn == nil {
		return
	}
	txn.AddAttribute("users.action", h.action)
	if users, ok := result.([]model.User); ok {
		txn.AddAttribute("users.count", len(users))
	}
}

// errorStatus maps a failure onto the status of its envelope.
//
//	InvalidIdentifier                     -> invalidIDStatus (500 unless configured)
//	MalformedBody                         -> malformedBodyStatus (500 unless configured)
//	ServiceUnavailable, ConnectionFailure -> 503
//	Timeout                               -> 504
//	anything else                         -> 500
func (h EnvelopeResponseHandler) errorStatus(err error) int {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}

	switch dberr.ErrCode(err) {
	case dberr.InvalidIdentifier:
		return h.invalidIDStatus
	case dberr.MalformedBody:
		return h.malformedBodyStatus
	case dberr.ServiceUnavailable, dberr.ConnectionFailure:
		return http.StatusServiceUnavailable
	case dberr.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorDescription is the client facing text of err. Only classified
// errors expose their message.
func errorDescription(err error) string {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		if len(httpErr.Errors) == 0 {
			return httpErr.Message
		}
		details := make([]string, 0, len(httpErr.Errors))
		for _, fe := range httpErr.Errors {
			details = append(details, fe.Field+" "+fe.Error)
		}
		return httpErr.Message + ": " + strings.Join(details, ", ")
	}

	var dbErr *dberr.Error
	if errors.As(err, &dbErr) {
		return dbErr.Message
	}
	if dberr.ErrCode(err) == dberr.Timeout {
		return "operation timed out"
	}
	return http.StatusText(http.StatusInternalServerError)
}

// handleRequest is the shared execution pipeline for all handlers.
//
// It centralizes:
//
// - request binding + validation
// - structured logging (with request context)
// - New Relic tracing attributes and error reporting
// - timing (validation duration, handler duration, total duration)
// - response writing through the ResponseHandler (value, absence, failure)
// - panic recovery, so a broken handler still produces its response shape
func handleRequest[Req validation.Validatable](
	c echo.Context,
	req Req,
	handler func(c echo.Context, req Req) (interface{}, bool, error),
	responseHandler ResponseHandler,
) (err error) {
	start := time.Now()
	method := c.Request().Method
	route := c.Path()

	// New Relic transaction is set by the New Relic Echo middleware (nrecho).
	txn := newrelic.FromContext(c.Request().Context())
	if txn != nil {
		txn.AddAttribute("handler.name", route)
		responseHandler.AddAttributes(txn, nil)
	}

	// The context-enhanced logger already carries request_id and trace ids.
	logger := middleware.GetLogger(c).With().
		Str("operation", responseHandler.GetOperation()).
		Str("method", method).
		Str("route", route).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			panicErr := errors.Errorf("handler panic: %v", r)

			logger.Error().
				Err(panicErr).
				Dur("total_duration", time.Since(start)).
				Msg("handler panicked")

			if txn != nil {
				txn.NoticeError(nrpkgerrors.Wrap(panicErr))
			}
			err = responseHandler.HandleError(c, panicErr)
		}
	}()

	logger.Info().Msg("handling request")

	// ---------------- Validation phase ---------------------------------------
	validationStart := time.Now()

	if err := validation.BindAndValidate(c, req); err != nil {
		validationDuration := time.Since(validationStart)

		logger.Error().
			Err(err).
			Dur("validation_duration", validationDuration).
			Msg("request validation failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("validation.status", "failed")
			txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
		}

		return responseHandler.HandleError(c, err)
	}

	validationDuration := time.Since(validationStart)
	if txn != nil {
		txn.AddAttribute("validation.status", "success")
		txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
	}

	// ---------------- Handler execution phase --------------------------------
	handlerStart := time.Now()
	result, found, err := handler(c, req)
	handlerDuration := time.Since(handlerStart)

	if err != nil {
		totalDuration := time.Since(start)

		logger.Error().
			Err(err).
			Str("error_kind", string(dberr.ErrCode(err))).
			Dur("handler_duration", handlerDuration).
			Dur("total_duration", totalDuration).
			Msg("handler execution failed")

		if txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
			txn.AddAttribute("handler.status", "error")
			txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
			txn.AddAttribute("total.duration_ms", totalDuration.Milliseconds())
		}
		return responseHandler.HandleError(c, err)
	}

	totalDuration := time.Since(start)

	if txn != nil {
		txn.AddAttribute("handler.duration_ms", handlerDuration.Milliseconds())
		txn.AddAttribute("total.duration_ms", totalDuration.Milliseconds())
	}

	if !found {
		if txn != nil {
			txn.AddAttribute("handler.status", "not_found")
		}
		logger.Info().
			Dur("handler_duration", handlerDuration).
			Dur("total_duration", totalDuration).
			Msg("record not found")
		return responseHandler.HandleAbsent(c)
	}

	if txn != nil {
		txn.AddAttribute("handler.status", "success")
		responseHandler.AddAttributes(txn, result)
	}

	logger.Info().
		Dur("handler_duration", handlerDuration).
		Dur("validation_duration", validationDuration).
		Dur("total_duration", totalDuration).
		Msg("request completed successfully")

	return responseHandler.Handle(c, result)
}

// Handle wraps a plain JSON handler with validation, error handling,
// logging and tracing. Errors are rendered by the global error handler.
//
// newReq is called once per request so requests never share a payload.
//
//	r.GET("/x", handler.Handle(h, myHandlerFn, http.StatusOK, newMyReq))
func Handle[Req validation.Validatable, Res any](
	h Handler,
	handler HandlerFunc[Req, Res],
	status int,
	newReq func() Req,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		return handleRequest(c, newReq(), func(c echo.Context, req Req) (interface{}, bool, error) {
			res, err := handler(c, req)
			return res, true, err
		}, JSONResponseHandler{status: status})
	}
}

// HandleAction wraps a users endpoint: every outcome, including failures
// and absence, is rendered as an envelope named after action.
func HandleAction[Req validation.Validatable, Res any](
	h Handler,
	action string,
	handler ActionFunc[Req, Res],
	status int,
	newReq func() Req,
) echo.HandlerFunc {
	responseHandler := EnvelopeResponseHandler{
		action:              action,
		status:              status,
		invalidIDStatus:     h.clientErrorStatus(func(c config.ServerConfig) bool { return c.InvalidIDAsBadRequest }),
		malformedBodyStatus: h.clientErrorStatus(func(c config.ServerConfig) bool { return c.MalformedBodyAsBadRequest }),
	}

	return func(c echo.Context) error {
		return handleRequest(c, newReq(), func(c echo.Context, req Req) (interface{}, bool, error) {
			return handler(c, req)
		}, responseHandler)
	}
}

// clientErrorStatus is 400 when asBadRequest is switched on in the server
// config, 500 otherwise.
func (h Handler) clientErrorStatus(asBadRequest func(config.ServerConfig) bool) int {
	if h.server != nil && h.server.Config != nil && asBadRequest(h.server.Config.Server) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// recordEvent records a New Relic custom event when the agent is enabled.
func (h Handler) recordEvent(eventType string, params map[string]interface{}) {
	if h.server == nil || h.server.LoggerService == nil {
		return
	}
	if app := h.server.LoggerService.GetApplication(); app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}
