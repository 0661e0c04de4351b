package quotations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type staticLatest struct {
	number string
	ok     bool
	err    error
}

func (s staticLatest) LatestNumber(context.Context) (string, bool, error) {
	return s.number, s.ok, s.err
}

func TestAllocatorPrefersCounter(t *testing.T) {
	counter := newMemoryCounter()
	a := NewAllocator("PRES", counter, staticLatest{number: "PRES-00900", ok: true}, nil, discardLogger())

	number, source := a.Next(context.Background())
	assert.Equal(t, "PRES-00001", number)
	assert.Equal(t, SourceCounter, source)
	assert.Equal(t, int64(1), counter.seqs["quotation:PRES"])
}

func TestAllocatorFallbackChain(t *testing.T) {
	down := newMemoryCounter()
	down.err = errors.New("timeout")
	metrics := newRecordedMetrics()

	a := NewAllocator("PRES", down, staticLatest{number: "PRES-00041", ok: true}, metrics, discardLogger())
	number, source := a.Next(context.Background())
	assert.Equal(t, "PRES-00042", number)
	assert.Equal(t, SourceLatest, source)

	a = NewAllocator("PRES", down, staticLatest{}, metrics, discardLogger())
	number, source = a.Next(context.Background())
	assert.Equal(t, "PRES-00001", number)
	assert.Equal(t, SourceLatest, source)

	a = NewAllocator("PRES", down, staticLatest{err: errors.New("db down")}, metrics, discardLogger())
	a.now = func() time.Time { return time.UnixMilli(1760000012345) }
	number, source = a.Next(context.Background())
	assert.Equal(t, "PRES-12345", number)
	assert.Equal(t, SourceTimestamp, source)

	assert.Equal(t, 2, metrics.fallbacks[SourceLatest])
	assert.Equal(t, 1, metrics.fallbacks[SourceTimestamp])
}

func TestNextFromPrevious(t *testing.T) {
	tests := map[string]string{
		"PRES-00007":  "PRES-00008",
		"PRES-99999":  "PRES-100000",
		"OLD-00012":   "PRES-00013",
		"garbage":     "PRES-00001",
		"PRES-":       "PRES-00001",
		"PRES-12a":    "PRES-00001",
		"A-B-C-00003": "PRES-00004",
	}
	for prev, want := range tests {
		assert.Equal(t, want, NextFromPrevious("PRES", prev), prev)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "PRES-00001", FormatNumber("PRES", 1))
	assert.Equal(t, "PRES-123456", FormatNumber("PRES", 123456))
	assert.Equal(t, "PRES-00000", TimestampNumber("PRES", time.UnixMilli(1700000000000)))
}

func TestAllocatorResyncRaisesCounter(t *testing.T) {
	counter := newMemoryCounter()
	counter.seqs["quotation:PRES"] = 3

	a := NewAllocator("PRES", counter, staticLatest{number: "PRES-00017", ok: true}, nil, discardLogger())
	assert.NoError(t, a.Resync(context.Background()))
	number, _ := a.Next(context.Background())
	assert.Equal(t, "PRES-00018", number)

	a = NewAllocator("PRES", counter, staticLatest{number: "PRES-00002", ok: true}, nil, discardLogger())
	assert.NoError(t, a.Resync(context.Background()))
	number, _ = a.Next(context.Background())
	assert.Equal(t, "PRES-00019", number)

	a = NewAllocator("PRES", counter, staticLatest{err: errors.New("db down")}, nil, discardLogger())
	assert.Error(t, a.Resync(context.Background()))
}
