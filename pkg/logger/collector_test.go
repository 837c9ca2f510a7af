package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (f *fakePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic = topic
	f.batches = append(f.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestCollectorDeduplicates(t *testing.T) {
	pub := &fakePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "churn.logs", Publisher: pub})
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.AddLog("error", "cache get failed", map[string]interface{}{"error": "timeout"}, "x.go:1")
	}
	c.AddLog("error", "cache get failed", map[string]interface{}{"error": "refused"}, "x.go:1")

	if got := c.Pending(); got != 2 {
		t.Fatalf("expected 2 pending entries, got %d", got)
	}
	c.Flush()
	if pub.count() != 1 {
		t.Fatalf("expected one batch, got %d", pub.count())
	}
	if pub.topic != "churn.logs" {
		t.Fatalf("unexpected topic %q", pub.topic)
	}
	var total int
	for _, e := range pub.batches[0] {
		total += e.Count
	}
	if total != 6 {
		t.Fatalf("expected 6 occurrences, got %d", total)
	}
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &fakePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 3, Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "boom", map[string]interface{}{"i": i}, "y.go:2")
	}
	c.Close()

	if pub.count() != 1 {
		t.Fatalf("expected threshold flush, got %d batches", pub.count())
	}
	if len(pub.batches[0]) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(pub.batches[0]))
	}
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &fakePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})

	l.Error("store failed", Error(errors.New("down")), String("table", "predictions"))
	l.Warn("not collected")
	l.RemoveCollector()

	if pub.count() != 1 || len(pub.batches[0]) != 1 {
		t.Fatalf("expected exactly one collected entry, got %+v", pub.batches)
	}
	e := pub.batches[0][0]
	if e.Fields["error"] != "down" || e.Fields["table"] != "predictions" {
		t.Fatalf("unexpected fields %+v", e.Fields)
	}
}
