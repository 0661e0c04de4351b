package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/reseller/internal/jobs"
	"github.com/odyssey-erp/reseller/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSendQuotation renders a quotation when needed and emails it.
	TaskSendQuotation = "quotation:send"
)

// SendQuotationPayload identifies the quotation and its recipient.
type SendQuotationPayload struct {
	QuotationID string `json:"quotation_id"`
	Recipient   string `json:"recipient"`
}

// NewSendQuotationTask constructs an Asynq task.
func NewSendQuotationTask(id uuid.UUID, recipient string) (*asynq.Task, error) {
	data, err := json.Marshal(SendQuotationPayload{QuotationID: id.String(), Recipient: recipient})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendQuotation, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// QuotationDeliverer emails a quotation document.
type QuotationDeliverer interface {
	DeliverDocument(ctx context.Context, id uuid.UUID, recipient string) error
}

// SendQuotationJob processes TaskSendQuotation tasks.
type SendQuotationJob struct {
	Service QuotationDeliverer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewSendQuotationJob(service QuotationDeliverer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendQuotationJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendQuotationJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle delivers the quotation. Processing failures are retried; anything
// else is permanent.
func (j *SendQuotationJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("send quotation: dependencies not configured")
	}
	var payload SendQuotationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	id, err := uuid.Parse(payload.QuotationID)
	if err != nil {
		return fmt.Errorf("send quotation %q: %w", payload.QuotationID, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskSendQuotation)
	err = j.Service.DeliverDocument(ctx, id, payload.Recipient)
	if err != nil {
		j.Logger.Error("send quotation",
			slog.String("quotation_id", payload.QuotationID),
			slog.Any("error", err),
		)
		return tracker.End(permanentUnlessProcessing(err))
	}
	return tracker.End(nil)
}

func permanentUnlessProcessing(err error) error {
	if shared.IsClassified(err) && !errors.Is(err, shared.ErrProcessing) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
