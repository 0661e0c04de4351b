package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/reseller/jobs"
)

// RateEnqueuer schedules a bulk exchange-rate refresh.
type RateEnqueuer interface {
	EnqueueExchangeRateRefresh(ctx context.Context, rate float64) (string, error)
}

// Inspector is the read side of asynq.Inspector used by the CLI.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for the job queue.
type JobsCLI struct {
	client    RateEnqueuer
	inspector Inspector
}

// NewJobsCLI builds the helpers on top of an enqueuer and an inspector.
func NewJobsCLI(client RateEnqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// RefreshRates enqueues a repricing of every product with a foreign price.
func (c *JobsCLI) RefreshRates(ctx context.Context, rate float64) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	if rate <= 0 {
		return "", fmt.Errorf("jobs cli: exchange rate must be positive, got %v", rate)
	}
	return c.client.EnqueueExchangeRateRefresh(ctx, rate)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the counters of the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ScheduledTask is the printable view of a task waiting in the queue.
type ScheduledTask struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ListScheduled returns up to size tasks waiting for their process time.
func (c *JobsCLI) ListScheduled(size int) ([]ScheduledTask, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	infos, err := c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if err != nil {
		return nil, err
	}
	out := make([]ScheduledTask, 0, len(infos))
	for _, info := range infos {
		out = append(out, ScheduledTask{ID: info.ID, Type: info.Type})
	}
	return out, nil
}

// Exec runs one command and writes its JSON result to out.
//
//	refresh-rates <rate>
//	queue-stats
//	scheduled [size]
func (c *JobsCLI) Exec(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("jobs cli: missing command")
	}
	var result any
	switch args[0] {
	case "refresh-rates":
		if len(args) != 2 {
			return errors.New("jobs cli: usage: refresh-rates <rate>")
		}
		rate, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("jobs cli: parse rate: %w", err)
		}
		id, err := c.RefreshRates(ctx, rate)
		if err != nil {
			return err
		}
		result = map[string]any{"task_id": id, "exchange_rate": rate}
	case "queue-stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		result = stats
	case "scheduled":
		size := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("jobs cli: parse size: %w", err)
			}
			size = n
		}
		tasks, err := c.ListScheduled(size)
		if err != nil {
			return err
		}
		result = tasks
	default:
		return fmt.Errorf("jobs cli: unsupported command %s", args[0])
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// Run connects to the queue and executes args.
func Run(ctx context.Context, redisOpts asynq.RedisClientOpt, args []string, out io.Writer) error {
	client := jobs.NewClient(redisOpts)
	inspector := asynq.NewInspector(redisOpts)
	err := NewJobsCLI(client, inspector).Exec(ctx, args, out)
	return errors.Join(err, inspector.Close(), client.Close())
}
