package logger

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/integrations/nrmongo"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/event"
)

// NewMongoMonitor returns a driver command monitor that logs every command
// at debug level and commands slower than slowThreshold at warn level.
//
// When New Relic is enabled the monitor is wrapped by nrmongo so commands
// also show up as datastore segments.
func NewMongoMonitor(logger *zerolog.Logger, slowThreshold time.Duration, loggerService *LoggerService) *event.CommandMonitor {
	monitor := &event.CommandMonitor{
		Started: func(_ context.Context, evt *event.CommandStartedEvent) {
			logger.Debug().
				Str("command", evt.CommandName).
				Str("database", evt.DatabaseName).
				Int64("request_id", evt.RequestID).
				Msg("mongodb command started")
		},
		Succeeded: func(_ context.Context, evt *event.CommandSucceededEvent) {
			e := logger.Debug()
			if slowThreshold > 0 && evt.Duration >= slowThreshold {
				e = logger.Warn().Dur("threshold", slowThreshold)
			}
			e.Str("command", evt.CommandName).
				Str("database", evt.DatabaseName).
				Int64("request_id", evt.RequestID).
				Dur("duration", evt.Duration).
				Msg("mongodb command finished")
		},
		Failed: func(_ context.Context, evt *event.CommandFailedEvent) {
			logger.Warn().
				Str("command", evt.CommandName).
				Str("database", evt.DatabaseName).
				Int64("request_id", evt.RequestID).
				Dur("duration", evt.Duration).
				Str("failure", evt.Failure).
				Msg("mongodb command failed")
		},
	}

	if loggerService.GetApplication() != nil {
		return nrmongo.NewCommandMonitor(monitor)
	}

	return monitor
}
