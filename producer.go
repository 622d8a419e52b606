package corelog

import (
	"github.com/swiftlog/corelog/internal/queue"
	"github.com/swiftlog/corelog/internal/threadctx"
)

// Producer is the handle a producer goroutine obtains once and reuses for
// the lifetime of its logging activity, exactly as a quill thread-local
// handle is obtained once per OS thread — Go has no addressable/enumerable
// goroutine ID, so identity here is the caller-supplied, stable id.
type Producer struct {
	ctx      *threadctx.Context
	registry *threadctx.Registry
	policy   QueuePolicy
}

// QueuePolicy selects how a Producer's queue behaves once it runs out of
// room.
type QueuePolicy int

const (
	// QueuePolicyUnboundedGrow never fails a write: the queue grows by
	// chaining a new, larger segment instead of rejecting it. This is the
	// default.
	QueuePolicyUnboundedGrow QueuePolicy = iota
	// QueuePolicyDropOnFull backs the producer with a fixed-capacity queue;
	// a write that doesn't fit is dropped and counted rather than grown.
	QueuePolicyDropOnFull
	// QueuePolicyBlockUntilSpace backs the producer with a fixed-capacity
	// queue; a write that doesn't fit retries until the backend frees room,
	// counting each retry as a blocked occurrence.
	QueuePolicyBlockUntilSpace
)

// producerConfig holds the resolved settings a ProducerOption mutates.
type producerConfig struct {
	policy          QueuePolicy
	boundedCapacity int
}

// ProducerOption configures a Producer at construction time.
type ProducerOption func(*producerConfig)

// WithQueuePolicy selects policy for the producer being constructed. For
// QueuePolicyDropOnFull and QueuePolicyBlockUntilSpace, capacity is the
// fixed queue size in bytes and must be a power of two; it is ignored for
// QueuePolicyUnboundedGrow.
func WithQueuePolicy(policy QueuePolicy, capacity int) ProducerOption {
	return func(c *producerConfig) {
		c.policy = policy
		c.boundedCapacity = capacity
	}
}

// defaultProducerInitialSegmentSize is the byte size of a producer's first
// unbounded-queue segment before it needs to grow.
const defaultProducerInitialSegmentSize = 4096

// defaultProducerBoundedCapacity is the fixed queue size used for
// WithQueuePolicy(QueuePolicyDropOnFull/BlockUntilSpace, 0).
const defaultProducerBoundedCapacity = 4096

// NewProducer registers and returns a Producer with the given stable id and
// optional display name. id must be unique among currently live producers
// on this Runtime. By default the producer's queue grows to absorb any
// write (QueuePolicyUnboundedGrow); pass WithQueuePolicy to select a
// fixed-capacity drop-on-full or block-until-space queue instead.
func (rt *Runtime) NewProducer(id, name string, opts ...ProducerOption) (*Producer, error) {
	cfg := producerConfig{policy: QueuePolicyUnboundedGrow, boundedCapacity: defaultProducerBoundedCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	var q queue.Queue
	switch cfg.policy {
	case QueuePolicyDropOnFull, QueuePolicyBlockUntilSpace:
		capacity := cfg.boundedCapacity
		if capacity <= 0 {
			capacity = defaultProducerBoundedCapacity
		}
		bq, err := queue.NewBoundedSpscQueue(capacity)
		if err != nil {
			return nil, ConfigError("creating producer queue: %v", err)
		}
		q = bq
	default:
		uq, err := queue.NewUnboundedSpscQueue(defaultProducerInitialSegmentSize, 0)
		if err != nil {
			return nil, ConfigError("creating producer queue: %v", err)
		}
		q = uq
	}

	ctx := threadctx.New(id, name, q)
	rt.threads.Register(ctx)
	return &Producer{ctx: ctx, registry: rt.threads, policy: cfg.policy}, nil
}

// Close marks the producer invalid; the backend worker drains any records
// still queued before forgetting it.
func (p *Producer) Close() {
	p.registry.Invalidate(p.ctx.ID)
}

// ID returns the producer's stable identity.
func (p *Producer) ID() string {
	return p.ctx.ID
}
