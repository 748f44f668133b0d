package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"OptionsOracle/pkg/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 5, 9, 45, 0, 0, time.UTC)

func newMockQueue(t *testing.T, retries int) (*RedisQueue, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	q := NewRedisQueue(logger.Nop(), Config{RetryLimit: retries, RetryDelay: 2 * time.Second}, db,
		WithKeyPrefix("test:queue"),
		WithClock(func() time.Time { return fixedNow }),
		WithIDFunc(func() string { return "id-1" }),
	)
	return q, mock
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestEnqueueWritesEnvelope(t *testing.T) {
	q, mock := newMockQueue(t, 1)
	want := Message{ID: "id-1", Type: "protective_exit.arm", Payload: json.RawMessage(`{"qty":65}`), EnqueuedAt: fixedNow}
	mock.ExpectLPush("test:queue:messages", mustJSON(t, want)).SetVal(1)

	require.NoError(t, q.Enqueue(context.Background(), "protective_exit.arm", map[string]int{"qty": 65}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchSchedulesRetry(t *testing.T) {
	q, mock := newMockQueue(t, 2)
	q.RegisterJob(JobFunc{Kind: "x", Fn: func(context.Context, json.RawMessage) error { return errors.New("gateway timeout") }})

	msg := Message{ID: "m", Type: "x", Payload: json.RawMessage(`{}`)}
	retried := msg
	retried.Attempts = 1
	retried.LastError = "gateway timeout"
	mock.ExpectZAdd("test:queue:retry", redis.Z{
		Score:  float64(fixedNow.Add(2 * time.Second).Unix()),
		Member: mustJSON(t, retried),
	}).SetVal(1)

	q.dispatch(context.Background(), msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchDeadLettersPermanentFailures(t *testing.T) {
	q, mock := newMockQueue(t, 5)
	q.RegisterJob(JobFunc{Kind: "x", Fn: func(_ context.Context, p json.RawMessage) error {
		_, err := Decode[struct{ Qty int }](p)
		return err
	}})

	msg := Message{ID: "m", Type: "x", Payload: json.RawMessage(`not-json`)}
	_, decodeErr := Decode[struct{ Qty int }](msg.Payload)
	dead := msg
	dead.Attempts = 1
	dead.LastError = decodeErr.Error()
	mock.ExpectLPush("test:queue:dlq", mustJSON(t, dead)).SetVal(1)

	q.dispatch(context.Background(), msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchSuccessTouchesNothing(t *testing.T) {
	q, mock := newMockQueue(t, 1)
	var got int
	q.RegisterJob(JobFunc{Kind: "x", Fn: func(_ context.Context, p json.RawMessage) error {
		v, err := Decode[struct{ Qty int }](p)
		got = v.Qty
		return err
	}})

	q.dispatch(context.Background(), Message{ID: "m", Type: "x", Payload: json.RawMessage(`{"Qty":130}`)})
	assert.Equal(t, 130, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveDueRequeues(t *testing.T) {
	q, mock := newMockQueue(t, 1)
	mock.ExpectZRangeByScore("test:queue:retry", &redis.ZRangeBy{
		Min: "-inf",
		Max: "1772703900",
	}).SetVal([]string{"a", "b"})
	mock.ExpectZRem("test:queue:retry", "a").SetVal(1)
	mock.ExpectLPush("test:queue:messages", "a").SetVal(1)
	mock.ExpectZRem("test:queue:retry", "b").SetVal(0)

	require.NoError(t, q.moveDue(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeRejectsEmpty(t *testing.T) {
	_, err := Decode[map[string]int](nil)
	assert.ErrorIs(t, err, ErrPermanent)
}
