package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches []LogBatch
	err     error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if b, ok := value.(LogBatch); ok {
		p.batches = append(p.batches, b)
	}
	return p.err
}

func (p *capturePublisher) all() []LogBatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LogBatch(nil), p.batches...)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	return out
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWriterFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info")

	log.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.Info("decision",
		String("action", "HOLD"),
		Int("confidence", 50),
		Float("score", 6.25),
		Bool("fallback", true),
		Duration("latency", 1500*time.Millisecond),
		OptFloat("vix", 0, false),
	)
	line := decodeLine(t, &buf)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "decision", line["message"])
	assert.Equal(t, "HOLD", line["action"])
	assert.EqualValues(t, 50, line["confidence"])
	assert.EqualValues(t, 6.25, line["score"])
	assert.Equal(t, true, line["fallback"])
	assert.EqualValues(t, 1500, line["latency"])
	assert.Contains(t, line, "vix")
	assert.Nil(t, line["vix"])
}

func TestComponentAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").Component("loop").With(String("index", "NIFTY"))

	log.Warn("waiting")
	line := decodeLine(t, &buf)
	assert.Equal(t, "loop", line["component"])
	assert.Equal(t, "NIFTY", line["index"])
	assert.Equal(t, "warn", line["level"])
}

func TestErrorFieldKey(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "info").Error("submit failed", Error(errors.New("timeout")))
	line := decodeLine(t, &buf)
	assert.Equal(t, "timeout", line["error"])
}

func TestCollectorDeduplicatesErrors(t *testing.T) {
	pub := &capturePublisher{}
	log := Nop()
	log.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "oracle.logs",
		Source:         "oracle",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		log.Error("feed dropped", String("token", "26000"))
	}
	log.Error("order rejected")
	log.Info("not collected")

	require.Equal(t, 2, log.collector.Pending())
	log.RemoveCollector()

	batches := pub.all()
	require.Len(t, batches, 1)
	assert.Equal(t, "oracle", batches[0].Source)
	require.Len(t, batches[0].Entries, 2)
	counts := map[string]int{}
	for _, e := range batches[0].Entries {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, map[string]int{"feed dropped": 3, "order rejected": 1}, counts)
	assert.Equal(t, "oracle.logs", pub.topics[0])
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "t", Publisher: pub})

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	assert.Equal(t, 0, c.Pending())

	c.Close()
	batches := pub.all()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Entries, 2)

	sent, failed := c.Stats()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 0, failed)
}

func TestCollectorCountsFailures(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 5, Topic: "t", Publisher: pub})
	c.AddLog("error", "a", map[string]interface{}{"k": 1}, "x.go:1")
	c.Flush()

	_, failed := c.Stats()
	assert.Equal(t, 1, failed)
	c.Close()
}
