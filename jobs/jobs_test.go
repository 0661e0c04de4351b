package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/reseller/internal/jobs"
	"github.com/odyssey-erp/reseller/internal/pricing"
	"github.com/odyssey-erp/reseller/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingDeliverer struct {
	id        uuid.UUID
	recipient string
	err       error
}

func (d *recordingDeliverer) DeliverDocument(_ context.Context, id uuid.UUID, recipient string) error {
	d.id, d.recipient = id, recipient
	return d.err
}

func TestSendQuotationJob(t *testing.T) {
	id := uuid.New()
	task, err := NewSendQuotationTask(id, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, TaskSendQuotation, task.Type())

	deliverer := &recordingDeliverer{}
	job := NewSendQuotationJob(deliverer, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, id, deliverer.id)
	assert.Equal(t, "buyer@example.com", deliverer.recipient)
}

func TestSendQuotationJobRetryPolicy(t *testing.T) {
	task, err := NewSendQuotationTask(uuid.New(), "")
	require.NoError(t, err)

	transient := &recordingDeliverer{err: shared.Processing("send quotation email", errors.New("smtp timeout"))}
	err = NewSendQuotationJob(transient, discardLogger(), nil).Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	permanent := &recordingDeliverer{err: shared.NotFoundf("quotation")}
	err = NewSendQuotationJob(permanent, discardLogger(), nil).Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	garbage := asynq.NewTask(TaskSendQuotation, []byte(`{"quotation_id":"nope"}`))
	err = NewSendQuotationJob(permanent, discardLogger(), nil).Handle(context.Background(), garbage)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubRefresher struct {
	rate float64
}

func (s *stubRefresher) BulkRefreshExchangeRate(_ context.Context, rate float64) (pricing.RefreshResult, error) {
	s.rate = rate
	return pricing.RefreshResult{UpdatedCount: 3, ExchangeRate: rate}, nil
}

func TestExchangeRateRefreshJob(t *testing.T) {
	task, err := NewExchangeRateRefreshTask(7150)
	require.NoError(t, err)

	var payload ExchangeRateRefreshPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, 7150.0, payload.ExchangeRate)

	refresher := &stubRefresher{}
	job := NewExchangeRateRefreshJob(refresher, discardLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 7150.0, refresher.rate)

	bad := asynq.NewTask(TaskExchangeRateRefresh, []byte(`{"exchange_rate":0}`))
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

type failingRefresher struct{ calls int }

func (f *failingRefresher) BulkRefreshExchangeRate(context.Context, float64) (pricing.RefreshResult, error) {
	f.calls++
	return pricing.RefreshResult{}, errors.New("catalog unavailable")
}

func TestExchangeRateRefreshIsRetried(t *testing.T) {
	var retries any
	for _, opt := range exchangeRateRefreshOptions() {
		if opt.Type() == asynq.MaxRetryOpt {
			retries = opt.Value()
		}
	}
	assert.Equal(t, exchangeRateRefreshRetries, retries)
	assert.Positive(t, exchangeRateRefreshRetries)

	task, err := NewExchangeRateRefreshTask(7150)
	require.NoError(t, err)
	refresher := &failingRefresher{}
	job := NewExchangeRateRefreshJob(refresher, discardLogger(), nil)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 1, refresher.calls)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientEnqueues(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &Client{client: enq}

	id, err := c.EnqueueSendQuotation(context.Background(), uuid.New(), "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	_, err = c.EnqueueExchangeRateRefresh(context.Background(), 7300)
	require.NoError(t, err)

	require.Len(t, enq.tasks, 2)
	assert.Equal(t, TaskSendQuotation, enq.tasks[0].Type())
	assert.Equal(t, TaskExchangeRateRefresh, enq.tasks[1].Type())
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, discardLogger()).
		health(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":4,"active":0,"retry":0}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHandler(stubInspector{err: errors.New("redis down")}, discardLogger()).
		health(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "localhost:0"}})
	assert.Error(t, err)
}
