package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fintrack-app/fintrack/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTokenPurge removes refresh tokens past their expiry.
	TaskTokenPurge = "auth:token_purge"
)

// TokenPurgePayload bounds a purge run to tokens expired before the cutoff.
type TokenPurgePayload struct {
	Before time.Time `json:"before"`
}

// TokenPurger is the persistence port the purge task runs against.
type TokenPurger interface {
	PurgeExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

// NewTokenPurgeTask constructs an Asynq task. A zero cutoff means "now at
// execution time".
func NewTokenPurgeTask(payload TokenPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTokenPurge, data), nil
}

// NewTokenPurgeHandler returns the handler for TaskTokenPurge tasks. A nil
// metrics value disables instrumentation.
func NewTokenPurgeHandler(purger TokenPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload TokenPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		before := payload.Before
		if before.IsZero() {
			before = time.Now().UTC()
		}
		tracker := metrics.Track(TaskTokenPurge)
		purged, err := purger.PurgeExpiredRefreshTokens(ctx, before)
		if err != nil {
			return tracker.End(err)
		}
		if logger != nil {
			logger.Info("purged expired refresh tokens", slog.Int64("count", purged))
		}
		return tracker.End(nil)
	}
}
