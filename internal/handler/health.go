package handler

// HealthHandler exposes a "system" endpoint that external systems can use to verify
// the service is alive and its dependencies are reachable.
//
// It is what container orchestrators, uptime monitors and the `healthcheck`
// CLI command probe.
import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/users-api/internal/middleware"
	"github.com/deppfellow/users-api/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HealthHandler embeds the base Handler to reuse shared server dependencies.
type HealthHandler struct {
	Handler
}

// NewHealthHandler constructs a HealthHandler with access to shared app dependencies.
func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

// CheckHealth returns system health status and dependency checks.
//
// Response includes:
// - overall status (healthy/unhealthy)
// - timestamp (UTC)
// - environment (from config)
// - checks map (database, redis)
//
// It returns:
// - 200 OK if all required checks pass
// - 503 Service Unavailable if the database check fails
//
// Redis only backs the cache and the jobs, so a failing Redis is reported
// but does not make the service unhealthy.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	obs := h.server.Config.Observability
	checks := make(map[string]interface{})
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}

	isHealthy := true

	// ---------------- Database connectivity check ----------------------------
	if obs.HasCheck("database") && h.server.DB != nil {
		result, err := h.runCheck(c.Request().Context(), obs.HealthChecks.Timeout, h.server.DB.Ping)
		checks["database"] = result
		if err != nil {
			isHealthy = false
			h.reportFailure(logger, "database", result, err)
		} else {
			logger.Info().Interface("check", result).Msg("database health check passed")
		}
	}

	// ---------------- Redis connectivity check -------------------------------
	if obs.HasCheck("redis") && h.server.Redis != nil {
		result, err := h.runCheck(c.Request().Context(), obs.HealthChecks.Timeout, func(ctx context.Context) error {
			return h.server.Redis.Ping(ctx).Err()
		})
		checks["redis"] = result
		if err != nil {
			h.reportFailure(logger, "redis", result, err)
		} else {
			logger.Info().Interface("check", result).Msg("redis health check passed")
		}
	}

	// ---------------- Overall status + response ------------------------------
	if !isHealthy {
		response["status"] = "unhealthy"

		logger.Warn().
			Dur("total_duration", time.Since(start)).
			Msg("health check failed")

		h.recordEvent("HealthCheckError", map[string]interface{}{
			"check_type":        "overall",
			"operation":         "health_check",
			"error_type":        "overall_unhealthy",
			"total_duration_ms": time.Since(start).Milliseconds(),
		})

		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Info().
		Dur("total_duration", time.Since(start)).
		Msg("health check passed")

	if err := c.JSON(http.StatusOK, response); err != nil {
		logger.Error().Err(err).Msg("failed to write JSON response")

		h.recordEvent("HealthCheckError", map[string]interface{}{
			"check_type":    "response",
			"operation":     "health_check",
			"error_type":    "json_response_error",
			"error_message": err.Error(),
		})

		return fmt.Errorf("failed to write JSON response: %w", err)
	}

	return nil
}

// runCheck runs one dependency probe under timeout and describes its outcome.
func (h *HealthHandler) runCheck(ctx context.Context, timeout time.Duration, probe func(context.Context) error) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	checkStart := time.Now()
	err := probe(ctx)

	result := map[string]interface{}{
		"status":        "healthy",
		"response_time": time.Since(checkStart).String(),
	}
	if err != nil {
		result["status"] = "unhealthy"
		result["error"] = err.Error()
	}
	return result, err
}

func (h *HealthHandler) reportFailure(logger zerolog.Logger, check string, result map[string]interface{}, err error) {
	logger.Error().
		Err(err).
		Interface("check", result).
		Msg(check + " health check failed")

	h.recordEvent("HealthCheckError", map[string]interface{}{
		"check_type":    check,
		"operation":     "health_check",
		"error_type":    check + "_unhealthy",
		"response_time": result["response_time"],
		"error_message": err.Error(),
	})
}
