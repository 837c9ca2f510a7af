package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ChurnScope/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The consumer commits the
// message without retry or dead-lettering.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics into a bounded worker pool. Offsets are
// committed explicitly after a message is handled, rejected as permanent, or
// dead-lettered.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *logger.Logger
	readers   map[string]messageReader
	handlers  map[string]MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	readerWG  sync.WaitGroup
	workerWG  sync.WaitGroup
	stopOnce  sync.Once
	msgChan   chan *message
	dlq       messageWriter
	partMu    sync.Mutex
	partLocks map[string]map[int]*sync.Mutex
	hook      ConsumerHook
	newReader func(topic string) messageReader
}

type message struct {
	topic string
	km    kafka.Message
}

type outcome string

const (
	outcomeOK        outcome = "ok"
	outcomeRejected  outcome = "rejected"
	outcomeDLQ       outcome = "dlq"
	outcomeFailed    outcome = "failed"
	outcomeCancelled outcome = "cancelled"
)

func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "churnscope",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
		ReadTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:       cfg,
		log:       log.With(logger.String("component", "kafka_consumer")),
		readers:   make(map[string]messageReader),
		handlers:  make(map[string]MessageHandler),
		ctx:       ctx,
		cancel:    cancel,
		msgChan:   make(chan *message, cfg.BufferSize),
		partLocks: make(map[string]map[int]*sync.Mutex),
		hook:      NoopHook{},
	}
	c.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
			MaxWait:  cfg.ReadTimeout,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	initConsumerMetricsOnce()
	return c, nil
}

// RegisterHandler registers handler for its topic. The first registration wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets the lifecycle hook.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workerWG.Add(1)
		go c.messageWorker()
	}
	for topic, reader := range c.readers {
		c.readerWG.Add(1)
		go c.consumeMessages(topic, reader)
	}

	c.log.Info("started",
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.readers)),
		logger.String("group_id", c.cfg.GroupID),
	)
	return nil
}

// Stop stops fetching, lets workers finish their current message and closes
// the readers. Buffered messages that were not handled are left uncommitted.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.cancel()
		c.readerWG.Wait()
		close(c.msgChan)
		stopErr = waitGroup(ctx, &c.workerWG)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("close reader failed", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer failed", logger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("stopped")
		}
	})
	return stopErr
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) consumeMessages(topic string, reader messageReader) {
	defer c.readerWG.Done()

	failures := 0
	for {
		km, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			failures++
			c.log.Warn("fetch failed", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)):
			case <-c.ctx.Done():
				return
			}
			continue
		}
		failures = 0

		// blocks while the pool is saturated
		select {
		case c.msgChan <- &message{topic: topic, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) messageWorker() {
	defer c.workerWG.Done()

	for msg := range c.msgChan {
		if c.ctx.Err() != nil {
			continue
		}
		start := time.Now()
		out := c.process(msg)
		consumerMessages.WithLabelValues(msg.topic, string(out)).Inc()
		consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())

		switch out {
		case outcomeOK, outcomeRejected, outcomeDLQ:
			if reader := c.readers[msg.topic]; reader != nil {
				_ = c.commitWithRetry(reader, msg.km, 3)
			}
		}
	}
}

// process runs the handler with hooks and retries and reports what happened.
func (c *Consumer) process(msg *message) (out outcome) {
	handler, ok := c.handlers[msg.topic]
	if !ok {
		return outcomeFailed
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in message handler", logger.String("topic", msg.topic), logger.Any("panic", r))
			out = c.deadLetter(msg, fmt.Errorf("panic: %v", r))
		}
	}()

	// at most one message in flight per partition
	pl := c.partitionLock(msg.topic, msg.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	var err error
	attempts := 0
	for {
		attempts++
		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(c.ctx, msg.topic, msg.km, msg.km.Value)
		if berr != nil {
			err = berr
		} else {
			err = handler.Handle(hctx, hdata)
			c.hook.AfterHandle(hctx, msg.topic, hmsg, hdata, err)
		}
		if err == nil {
			return outcomeOK
		}
		c.hook.OnError(hctx, msg.topic, hmsg, hdata, err)
		if IsPermanent(err) {
			c.log.Debug("message rejected",
				logger.String("topic", msg.topic),
				logger.Int64("offset", msg.km.Offset),
				logger.Error(err),
			)
			return outcomeRejected
		}
		if attempts > c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.ctx.Done():
			return outcomeCancelled
		}
	}

	c.log.Error("message handling failed",
		logger.String("topic", msg.topic),
		logger.Int("attempts", attempts),
		logger.Error(err),
	)
	return c.deadLetter(msg, err)
}

func (c *Consumer) deadLetter(msg *message, cause error) outcome {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return outcomeFailed
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.km.Key,
		Value: msg.km.Value,
		Time:  time.Now().UTC(),
		Headers: append(append([]kafka.Header(nil), msg.km.Headers...),
			kafka.Header{Key: "source_topic", Value: []byte(msg.topic)},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
		),
	})
	if err != nil {
		c.log.Error("dlq write failed", logger.String("dlq_topic", c.cfg.DLQTopic), logger.Error(err))
		return outcomeFailed
	}
	return outcomeDLQ
}

func (c *Consumer) commitWithRetry(reader messageReader, km kafka.Message, max int) error {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("commit failed", logger.Int("attempts", max), logger.Int64("offset", km.Offset), logger.Error(err))
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()
	m, ok := c.partLocks[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partLocks[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if e := min << uint(attempt-1); e > 0 && e < max {
			exp = e
		}
	}
	// jitter up to 50%
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerMessages      *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "churn_kafka_consumer_queue_depth", Help: "Messages waiting in the worker queue"},
			[]string{"topic"},
		)
		consumerMessages = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "churn_kafka_consumer_messages_total", Help: "Consumed messages by outcome"},
			[]string{"topic", "outcome"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "churn_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
