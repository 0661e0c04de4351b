package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/reseller/internal/jobs"
	"github.com/odyssey-erp/reseller/internal/pricing"
)

// TaskExchangeRateRefresh reprices every product with a foreign price.
const TaskExchangeRateRefresh = "pricing:exchange_rate_refresh"

type ExchangeRateRefreshPayload struct {
	ExchangeRate float64 `json:"exchange_rate"`
}

// exchangeRateRefreshRetries bounds automatic reruns of a failed refresh.
// Reapplying the same rate yields the same prices, so a rerun is safe.
const exchangeRateRefreshRetries = 3

func exchangeRateRefreshOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(exchangeRateRefreshRetries),
		asynq.Timeout(30 * time.Minute),
	}
}

// NewExchangeRateRefreshTask builds the refresh task.
func NewExchangeRateRefreshTask(rate float64) (*asynq.Task, error) {
	body, err := json.Marshal(ExchangeRateRefreshPayload{ExchangeRate: rate})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExchangeRateRefresh, body, exchangeRateRefreshOptions()...), nil
}

// RateRefresher applies an exchange rate to the catalog.
type RateRefresher interface {
	BulkRefreshExchangeRate(ctx context.Context, rate float64) (pricing.RefreshResult, error)
}

type ExchangeRateRefreshJob struct {
	Service RateRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewExchangeRateRefreshJob(service RateRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExchangeRateRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExchangeRateRefreshJob{Service: service, Logger: logger, Metrics: metrics}
}

func (j *ExchangeRateRefreshJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("exchange rate refresh: dependencies not configured")
	}
	var payload ExchangeRateRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.ExchangeRate <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskExchangeRateRefresh)
	result, err := j.Service.BulkRefreshExchangeRate(ctx, payload.ExchangeRate)
	if err != nil {
		j.Logger.Error("exchange rate refresh", slog.Float64("exchange_rate", payload.ExchangeRate), slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("exchange rate refresh finished",
		slog.Float64("exchange_rate", result.ExchangeRate),
		slog.Int("updated", result.UpdatedCount),
		slog.Int("failed", result.FailedCount),
	)
	return tracker.End(nil)
}
