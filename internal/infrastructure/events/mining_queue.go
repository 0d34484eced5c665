package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/metrics"
	"LookTrainer/internal/ports"
)

const defaultMaxAttempts = 3

// NewPubSub builds the in-process channel used between feedback and mining.
func NewPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
}

// MiningQueue publishes mining jobs onto a topic.
type MiningQueue struct {
	publisher message.Publisher
	topic     string
}

var _ ports.MiningQueue = (*MiningQueue)(nil)

// NewMiningQueue wires a publisher and topic name.
func NewMiningQueue(publisher message.Publisher, topic string) *MiningQueue {
	return &MiningQueue{publisher: publisher, topic: topic}
}

// Enqueue serializes the job and publishes it without waiting for mining.
func (q *MiningQueue) Enqueue(ctx context.Context, job domain.MiningJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal mining job: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("item_id", job.ItemID)
	if err := q.publisher.Publish(q.topic, msg); err != nil {
		return fmt.Errorf("publish mining job: %w", err)
	}
	return nil
}

// Miner is the part of the pattern miner the worker drives.
type Miner interface {
	Mine(ctx context.Context, job domain.MiningJob) ([]domain.Pattern, error)
}

// WorkerDeps wires the mining worker.
type WorkerDeps struct {
	Subscriber  message.Subscriber
	Topic       string
	Miner       Miner
	MaxAttempts int
	Backoff     time.Duration
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// MiningWorker consumes mining jobs. Each job is retried up to MaxAttempts
// times and then dropped with a log line; messages are always acked.
type MiningWorker struct {
	subscriber  message.Subscriber
	topic       string
	miner       Miner
	maxAttempts int
	backoff     time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
	done        chan struct{}
}

// NewMiningWorker constructs a worker.
func NewMiningWorker(deps WorkerDeps) *MiningWorker {
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &MiningWorker{
		subscriber:  deps.Subscriber,
		topic:       deps.Topic,
		miner:       deps.Miner,
		maxAttempts: attempts,
		backoff:     deps.Backoff,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		done:        make(chan struct{}),
	}
}

// Start subscribes and processes messages until ctx is done or the
// subscriber closes.
func (w *MiningWorker) Start(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, w.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.topic, err)
	}

	go func() {
		defer close(w.done)
		for msg := range messages {
			w.process(ctx, msg)
		}
	}()
	return nil
}

// Done is closed once the message channel drains.
func (w *MiningWorker) Done() <-chan struct{} {
	return w.done
}

func (w *MiningWorker) process(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var job domain.MiningJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		w.metrics.MiningFailed("decode")
		w.warn("cannot decode mining job", "message_id", msg.UUID, "error", err)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if _, lastErr = w.miner.Mine(ctx, job); lastErr == nil {
			return
		}
		w.warn("pattern extraction failed",
			"item_id", job.ItemID,
			"attempt", attempt,
			"error", lastErr,
		)
		if attempt < w.maxAttempts && !w.sleep(ctx) {
			break
		}
	}

	w.metrics.MiningFailed("dropped")
	w.warn("mining job dropped", "item_id", job.ItemID, "attempts", w.maxAttempts, "error", lastErr)
}

func (w *MiningWorker) sleep(ctx context.Context) bool {
	if w.backoff <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *MiningWorker) warn(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
