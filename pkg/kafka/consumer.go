package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes the payloads of one topic. Handle is called
// from worker goroutines and must be safe for concurrent use.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	StartFrom   string // "earliest" or "latest" when the group has no committed offset
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
	}
}

// WithConsumerGroupID sets consumer group ID.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.GroupID = groupID
	}
}

// WithConsumerStartFrom sets where a fresh group begins reading.
func WithConsumerStartFrom(pos string) ConsumerOption {
	return func(c *ConsumerConfig) {
		if pos != "" {
			c.StartFrom = pos
		}
	}
}

// WithConsumerWorkers sets the handler worker count.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.WorkerCount = count
	}
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sets the dead-letter topic for reports that exhaust
// their retries.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
	}
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the inbox channel capacity.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Consumer reads report topics through a worker pool. Offsets are
// committed only after a report is handled or dead-lettered, so a crash
// replays uncommitted reports instead of dropping them.
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	inbox    chan *envelope
	stopCh   chan struct{}
	stopOnce sync.Once
	readWg   sync.WaitGroup
	workWg   sync.WaitGroup
	dlq      *kafka.Writer
	partMu   map[string]map[int]*sync.Mutex
	hook     ConsumerHook
}

// envelope carries one fetched message to the worker pool.
type envelope struct {
	topic string
	raw   []byte
	km    kafka.Message
}

// NewConsumer creates a Kafka consumer. Handlers are attached with
// RegisterHandler before Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		StartFrom:   "earliest",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    1 << 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.StartFrom != "earliest" && cfg.StartFrom != "latest" {
		return nil, fmt.Errorf("start_from %q: want earliest or latest", cfg.StartFrom)
	}

	c := &Consumer{
		cfg:      cfg,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		inbox:    make(chan *envelope, cfg.BufferSize),
		stopCh:   make(chan struct{}),
		partMu:   make(map[string]map[int]*sync.Mutex),
		hook:     NoopHook{},
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler attaches a handler for its topic. A duplicate topic
// keeps the first handler.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		log.Printf("warn: handler already registered for topic %s", topic)
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start opens one reader per registered topic and launches the worker
// pool.
func (c *Consumer) Start() error {
	start := kafka.FirstOffset
	if c.cfg.StartFrom == "latest" {
		start = kafka.LastOffset
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			StartOffset: start,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
		})
		log.Printf("kafka consumer: registered topic=%s", topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWg.Add(1)
		go c.worker()
	}
	for topic, reader := range c.readers {
		c.readWg.Add(1)
		go c.readLoop(topic, reader)
	}

	log.Printf("kafka consumer: started workers=%d topics=%d", c.cfg.WorkerCount, len(c.readers))
	return nil
}

// Stop shuts the consumer down: readers drain first, then the inbox
// closes and workers finish their in-flight reports. The context bounds
// each wait.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		log.Println("kafka consumer: stopping...")

		close(c.stopCh)

		// Closing a reader unblocks its pending fetch.
		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Printf("error closing reader for topic %s: %v", topic, err)
			}
		}
		if stopErr = waitBounded(ctx, &c.readWg); stopErr != nil {
			stopErr = fmt.Errorf("waiting for readers: %w", stopErr)
			return
		}

		// No reader can enqueue anymore; the close releases the workers.
		close(c.inbox)
		if stopErr = waitBounded(ctx, &c.workWg); stopErr != nil {
			stopErr = fmt.Errorf("waiting for workers: %w", stopErr)
			return
		}

		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("error closing dlq writer: %v", err)
			}
		}
		log.Println("kafka consumer: stopped")
	})

	return stopErr
}

func waitBounded(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// readLoop fetches from one topic and feeds the inbox. The enqueue
// never drops: near-full inboxes get a short sleep, otherwise the
// goroutine only yields.
func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.readWg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			select {
			case <-c.stopCh:
				// closed reader during shutdown
				return
			default:
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("error fetching from topic %s: %v", topic, err)
			}
			continue
		}

		env := &envelope{topic: topic, raw: msg.Value, km: msg}
		for {
			select {
			case c.inbox <- env:
				consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.inbox)))
				consumerQueueFullness.WithLabelValues(topic).Set(fullness(c.inbox))
			case <-c.stopCh:
				return
			default:
				f := fullness(c.inbox)
				consumerQueueFullness.WithLabelValues(topic).Set(f)
				if f > 0.8 {
					time.Sleep(10 * time.Millisecond)
				} else {
					runtime.Gosched()
				}
				continue
			}
			break
		}
	}
}

func fullness(ch chan *envelope) float64 {
	return float64(len(ch)) / float64(cap(ch))
}

// worker handles envelopes until the inbox closes.
func (c *Consumer) worker() {
	defer c.workWg.Done()

	for env := range c.inbox {
		handler, ok := c.handlers[env.topic]
		if !ok {
			continue
		}
		c.handle(handler, env)
	}
}

// handle runs one envelope through hooks, retries, and the terminal
// commit/DLQ decision. Panics in handlers are contained here.
func (c *Consumer) handle(handler MessageHandler, env *envelope) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic in handler for topic %s: %v", env.topic, r)
		}
		consumerHandleLatency.WithLabelValues(env.topic).Observe(time.Since(start).Seconds())
	}()

	// One in-flight report per (topic, partition) keeps per-key order.
	pl := c.partitionLock(env.topic, env.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	var err error
	attempts := 0
	for {
		attempts++
		hctx, hmsg, hraw, berr := c.hook.BeforeHandle(context.Background(), env.topic, env.km, env.raw)
		if berr != nil {
			err = berr
			break
		}

		err = handler.Handle(hctx, hraw)
		c.hook.AfterHandle(hctx, env.topic, hmsg, hraw, err)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}
		c.hook.OnError(hctx, env.topic, hmsg, hraw, err)
		select {
		case <-time.After(jitterBackoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopCh:
			return
		}
	}

	deadLettered := false
	if err != nil {
		c.hook.OnError(context.Background(), env.topic, env.km, env.raw, err)
		log.Printf("error handling message from topic %s after %d attempts: %v", env.topic, attempts-1, err)
		deadLettered = c.deadLetter(env)
	}

	// Commit on success or after dead-lettering so a poison report
	// cannot wedge the partition.
	if err == nil || deadLettered {
		if reader := c.readers[env.topic]; reader != nil {
			c.commit(reader, env.km)
		}
	}
}

// deadLetter forwards an exhausted report to the DLQ topic, tagged with
// its source. Reports false when no DLQ is configured or the write
// failed, which leaves the offset uncommitted.
func (c *Consumer) deadLetter(env *envelope) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   env.raw,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(env.topic)}},
	})
	if err != nil {
		log.Printf("error writing to DLQ topic %s: %v", c.cfg.DLQTopic, err)
		return false
	}
	return true
}

// commit commits one offset with bounded retries.
func (c *Consumer) commit(reader *kafka.Reader, km kafka.Message) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(jitterBackoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("error committing offset for topic %s: %v", km.Topic, err)
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	m, ok := c.partMu[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partMu[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

// jitterBackoff doubles from min up to max, then subtracts as much as
// half the delay so retrying consumers spread out.
func jitterBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max {
		exp = max
	}
	return exp - time.Duration(rand.Int63n(int64(exp)/2))
}

var (
	consumerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "perpscout_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
		[]string{"topic"},
	)
	consumerQueueFullness = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "perpscout_kafka_consumer_queue_fullness", Help: "Queue utilization ratio (len/cap)"},
		[]string{"topic"},
	)
	consumerHandleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Name: "perpscout_kafka_consumer_handle_seconds", Help: "Handling time per message"},
		[]string{"topic"},
	)
)
