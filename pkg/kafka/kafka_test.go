package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"OptionsOracle/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type countingHandler struct {
	topic string
	mu    sync.Mutex
	seen  []string
	fail  int
}

func (h *countingHandler) Topic() string { return h.topic }

func (h *countingHandler) Handle(_ context.Context, b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, string(b))
	if h.fail > 0 {
		h.fail--
		return errors.New("transient")
	}
	return nil
}

func (h *countingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func newTestConsumer(t *testing.T, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(logger.Nop(), opts...)
	require.NoError(t, err)
	return c
}

func TestProducerEncodesAndStampsTopic(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}

	require.NoError(t, p.Publish(context.Background(), "oracle.decisions", []byte("k"), map[string]int{"confidence": 72}))
	require.NoError(t, p.PublishBatch(context.Background(), "oracle.ticks", []Message{
		{Key: []byte("26000"), Value: []byte(`{"ltp":2200000}`)},
		{Key: []byte("26017"), Value: "raw"},
	}))

	msgs := w.written()
	require.Len(t, msgs, 3)
	assert.Equal(t, "oracle.decisions", msgs[0].Topic)
	assert.JSONEq(t, `{"confidence":72}`, string(msgs[0].Value))
	assert.Equal(t, "26000", string(msgs[1].Key))
	assert.Equal(t, "raw", string(msgs[2].Value))
}

func TestProducerWrapsWriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("leader not available")}}
	err := p.Publish(context.Background(), "t", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.NoError(t, p.PublishBatch(context.Background(), "t", nil))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	c := newTestConsumer(t)
	h := &countingHandler{topic: "ticks", fail: 2}
	c.RegisterHandler(h)
	r := &fakeReader{}
	c.readers["ticks"] = r

	c.process(kafka.Message{Topic: "ticks", Offset: 7, Value: []byte("a")})
	assert.Equal(t, 3, h.calls())
	assert.Equal(t, []int64{7}, r.commits())
}

func TestConsumerDeadLettersAfterExhaustion(t *testing.T) {
	c := newTestConsumer(t, WithConsumerDLQ("ticks.dlq"))
	dlq := &fakeWriter{}
	c.dlq = dlq
	h := &countingHandler{topic: "ticks", fail: 100}
	c.RegisterHandler(h)
	r := &fakeReader{}
	c.readers["ticks"] = r

	c.process(kafka.Message{Topic: "ticks", Offset: 3, Value: []byte("bad")})
	assert.Equal(t, 3, h.calls())

	dead := dlq.written()
	require.Len(t, dead, 1)
	assert.Equal(t, "ticks.dlq", dead[0].Topic)
	assert.Equal(t, "ticks", string(dead[0].Headers[0].Value))
	assert.Equal(t, []int64{3}, r.commits())
}

func TestConsumerWithoutDLQDoesNotCommitFailures(t *testing.T) {
	c := newTestConsumer(t)
	c.RegisterHandler(&countingHandler{topic: "ticks", fail: 100})
	r := &fakeReader{}
	c.readers["ticks"] = r

	c.process(kafka.Message{Topic: "ticks", Offset: 1})
	assert.Empty(t, r.commits())
}

func TestMaxAgeHookSkipsAndCommits(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	c := newTestConsumer(t)
	c.SetHook(NewHookChain(MaxAgeHook(time.Minute, func() time.Time { return now })))
	h := &countingHandler{topic: "ticks"}
	c.RegisterHandler(h)
	r := &fakeReader{}
	c.readers["ticks"] = r

	c.process(kafka.Message{Topic: "ticks", Offset: 1, Time: now.Add(-2 * time.Minute)})
	c.process(kafka.Message{Topic: "ticks", Offset: 2, Time: now.Add(-time.Second)})

	assert.Equal(t, 1, h.calls())
	assert.Equal(t, []int64{1, 2}, r.commits())
}

func TestConsumerRunAndStop(t *testing.T) {
	c := newTestConsumer(t, WithConsumerWorkers(2))
	h := &countingHandler{topic: "ticks"}
	c.RegisterHandler(h)
	r := &fakeReader{pending: []kafka.Message{
		{Topic: "ticks", Partition: 0, Offset: 1, Value: []byte("1")},
		{Topic: "ticks", Partition: 0, Offset: 2, Value: []byte("2")},
		{Topic: "ticks", Partition: 1, Offset: 1, Value: []byte("3")},
	}}
	c.readers["ticks"] = r
	c.run()

	assert.Eventually(t, func() bool { return h.calls() == 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	assert.Len(t, r.commits(), 3)
}

func TestHookChainRecoversPanics(t *testing.T) {
	var after []string
	chain := NewHookChain(
		HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { after = append(after, "first") }},
		nil,
		HookFuncs{
			Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
				panic("bad hook")
			},
			After: func(context.Context, string, kafka.Message, []byte, error) { after = append(after, "second") },
		},
	)

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)

	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
	assert.Equal(t, []string{"second", "first"}, after)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 200*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
	assert.LessOrEqual(t, backoffWithJitter(10*time.Millisecond, time.Second, 1), 10*time.Millisecond)
}

type skippingHandler struct{ calls int }

func (h *skippingHandler) Topic() string { return "ticks" }

func (h *skippingHandler) Handle(context.Context, []byte) error {
	h.calls++
	return fmt.Errorf("bad frame: %w", ErrSkip)
}

func TestHandlerSkipCommitsWithoutRetry(t *testing.T) {
	c := newTestConsumer(t)
	h := &skippingHandler{}
	c.RegisterHandler(h)
	r := &fakeReader{}
	c.readers["ticks"] = r

	c.process(kafka.Message{Topic: "ticks", Offset: 9, Value: []byte("{")})
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, []int64{9}, r.commits())
}
