package logger

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.uber.org/zap"
)

// NewMongoCommandMonitor returns a driver command monitor that logs through zap.
// Successful commands are logged at debug level, or at warn level once they take
// longer than slowQuerySeconds. Failed commands are logged at error level.
func NewMongoCommandMonitor(l *zap.Logger, slowQuerySeconds float64) *event.CommandMonitor {
	slow := time.Duration(slowQuerySeconds * float64(time.Second))

	return &event.CommandMonitor{
		Started: func(ctx context.Context, e *event.CommandStartedEvent) {
			WithContext(ctx, l).Debug("mongo command started",
				zap.String("command", e.CommandName),
				zap.String("database", e.DatabaseName),
				zap.Int64("mongo_request_id", e.RequestID),
			)
		},
		Succeeded: func(ctx context.Context, e *event.CommandSucceededEvent) {
			fields := []zap.Field{
				zap.String("command", e.CommandName),
				zap.Int64("mongo_request_id", e.RequestID),
				zap.Duration("elapsed", e.Duration),
			}
			if slow > 0 && e.Duration > slow {
				WithContext(ctx, l).Warn("mongo slow command", append(fields, zap.Duration("threshold", slow))...)
				return
			}
			WithContext(ctx, l).Debug("mongo command succeeded", fields...)
		},
		Failed: func(ctx context.Context, e *event.CommandFailedEvent) {
			WithContext(ctx, l).Error("mongo command failed",
				zap.String("command", e.CommandName),
				zap.Int64("mongo_request_id", e.RequestID),
				zap.Duration("elapsed", e.Duration),
				zap.String("failure", e.Failure),
			)
		},
	}
}
