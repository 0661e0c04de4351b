package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Number sources, from preferred to last resort.
const (
	SourceCounter   = "counter"
	SourceLatest    = "latest"
	SourceTimestamp = "timestamp"
)

// Counter atomically increments and returns the named sequence. SyncSequence
// raises the sequence to at least atLeast and never lowers it.
type Counter interface {
	NextSequence(ctx context.Context, key string) (int64, error)
	SyncSequence(ctx context.Context, key string, atLeast int64) error
}

// LatestNumberSource returns the number of the most recently created
// quotation; ok is false when none exists.
type LatestNumberSource interface {
	LatestNumber(ctx context.Context) (number string, ok bool, err error)
}

// SequenceObserver is told whenever a fallback source was used.
type SequenceObserver interface {
	SequenceFallback(source string)
}

// Allocator produces quotation numbers. It never fails: when the counter is
// unavailable it derives the number from the latest quotation, and when that
// fails too it uses the clock. Only the counter is safe under concurrency; the
// store's unique constraint catches collisions from the fallbacks.
type Allocator struct {
	prefix   string
	counter  Counter
	latest   LatestNumberSource
	observer SequenceObserver
	logger   *slog.Logger
	now      func() time.Time
}

func NewAllocator(prefix string, counter Counter, latest LatestNumberSource, observer SequenceObserver, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		prefix:   prefix,
		counter:  counter,
		latest:   latest,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

func (a *Allocator) sequenceKey() string {
	return "quotation:" + a.prefix
}

// Next returns a candidate number and the source it came from.
func (a *Allocator) Next(ctx context.Context) (string, string) {
	if a.counter != nil {
		seq, err := a.counter.NextSequence(ctx, a.sequenceKey())
		if err == nil && seq > 0 {
			return FormatNumber(a.prefix, seq), SourceCounter
		}
		a.logger.Warn("quotation counter unavailable", slog.Any("error", err))
	}

	if a.latest != nil {
		prev, ok, err := a.latest.LatestNumber(ctx)
		if err == nil {
			a.fallback(SourceLatest)
			if !ok {
				return FormatNumber(a.prefix, 1), SourceLatest
			}
			return NextFromPrevious(a.prefix, prev), SourceLatest
		}
		a.logger.Warn("latest quotation lookup failed", slog.Any("error", err))
	}

	a.fallback(SourceTimestamp)
	return TimestampNumber(a.prefix, a.now()), SourceTimestamp
}

// Resync raises the counter to the suffix of the latest stored number so
// numbers issued by a fallback while the counter was down are not handed out
// again once it recovers.
func (a *Allocator) Resync(ctx context.Context) error {
	if a.counter == nil || a.latest == nil {
		return nil
	}
	prev, ok, err := a.latest.LatestNumber(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	seq, ok := numberSuffix(prev)
	if !ok {
		return nil
	}
	return a.counter.SyncSequence(ctx, a.sequenceKey(), seq)
}

func (a *Allocator) fallback(source string) {
	if a.observer != nil {
		a.observer.SequenceFallback(source)
	}
}

// FormatNumber renders PREFIX-NNNNN with at least five digits.
func FormatNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%05d", prefix, seq)
}

// NextFromPrevious increments the numeric suffix after the last dash of prev.
// An unparsable or missing suffix restarts at 1.
func NextFromPrevious(prefix, prev string) string {
	n, ok := numberSuffix(prev)
	if !ok {
		return FormatNumber(prefix, 1)
	}
	return FormatNumber(prefix, n+1)
}

func numberSuffix(number string) (int64, bool) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// TimestampNumber uses the last five digits of the Unix time in milliseconds.
func TimestampNumber(prefix string, now time.Time) string {
	return FormatNumber(prefix, now.UnixMilli()%100000)
}
