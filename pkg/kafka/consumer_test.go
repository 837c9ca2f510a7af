package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ChurnScope/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
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

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type funcHandler struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h funcHandler) Topic() string                              { return h.topic }
func (h funcHandler) Handle(ctx context.Context, b []byte) error { return h.fn(ctx, b) }

func newTestConsumer(t *testing.T, reader *fakeReader, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(logger.Nop(), opts...)
	require.NoError(t, err)
	c.newReader = func(string) messageReader { return reader }
	return c
}

func msg(offset int64, value string) kafka.Message {
	return kafka.Message{Topic: "churn.requests", Offset: offset, Value: []byte(value)}
}

func TestConsumerCommitsHandledAndRejected(t *testing.T) {
	reader := newFakeReader(msg(1, "ok"), msg(2, "bad"), msg(3, "ok"))
	c := newTestConsumer(t, reader)

	var calls int32
	c.RegisterHandler(funcHandler{topic: "churn.requests", fn: func(_ context.Context, b []byte) error {
		atomic.AddInt32(&calls, 1)
		if string(b) == "bad" {
			return Permanent(errors.New("invalid tenure"))
		}
		return nil
	}})
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.ElementsMatch(t, []int64{1, 2, 3}, reader.commits())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "permanent errors are not retried")
}

func TestConsumerRetriesThenDeadLetters(t *testing.T) {
	reader := newFakeReader(msg(7, "flaky"))
	c := newTestConsumer(t, reader, WithConsumerDLQ("churn.requests.dlq"))
	dlq := &fakeWriter{}
	c.dlq = dlq

	var calls int32
	c.RegisterHandler(funcHandler{topic: "churn.requests", fn: func(context.Context, []byte) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("store down")
	}})
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	out := dlq.written()
	require.Len(t, out, 1)
	assert.Equal(t, "churn.requests.dlq", out[0].Topic)
	assert.Equal(t, "churn.requests", HeaderValue(out[0], "source_topic"))
	assert.Equal(t, "store down", HeaderValue(out[0], "error"))
}

func TestConsumerLeavesFailuresUncommittedWithoutDLQ(t *testing.T) {
	reader := newFakeReader(msg(9, "x"))
	c := newTestConsumer(t, reader)

	done := make(chan struct{}, 4)
	c.RegisterHandler(funcHandler{topic: "churn.requests", fn: func(context.Context, []byte) error {
		done <- struct{}{}
		return errors.New("nope")
	}})
	require.NoError(t, c.Start())
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler not retried")
		}
	}
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.Empty(t, reader.commits())
}

func TestRequestIDHook(t *testing.T) {
	reader := newFakeReader(kafka.Message{
		Offset:  1,
		Key:     []byte("key-1"),
		Value:   []byte("{}"),
		Headers: []kafka.Header{{Key: HeaderRequestID, Value: []byte("req-42")}},
	})
	c := newTestConsumer(t, reader)
	c.WithConsumerHook(NewHookChain(RequestIDHook()))

	got := make(chan string, 1)
	c.RegisterHandler(funcHandler{topic: "churn.requests", fn: func(ctx context.Context, _ []byte) error {
		got <- RequestIDFromContext(ctx)
		return nil
	}})
	require.NoError(t, c.Start())
	defer c.Stop(context.Background())

	select {
	case id := <-got:
		assert.Equal(t, "req-42", id)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestHookChainRecoversPanics(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
}

func TestBackoffWithJitterBounded(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 200*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("invalid")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
}
