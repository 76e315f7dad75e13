package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/vurg/notification-service/app/entity"
	"github.com/vurg/notification-service/app/metrics"
	"github.com/vurg/notification-service/app/service"
)

var ErrPoolClosed = errors.New("worker pool closed")

// EventDispatcher runs the authorize, artifact, and send stages.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev entity.AppointmentEvent) service.Outcome
}

// Pool is a bounded worker pool. Events for the same recipient always land
// on the same worker, so they are dispatched in arrival order.
type Pool struct {
	dispatcher  EventDispatcher
	shards      []chan job
	sendTimeout time.Duration
	metrics     *metrics.Metrics
	logger      logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool builds a pool of workers sharing queueSize buffered slots.
func NewPool(dispatcher EventDispatcher, workers, queueSize int, sendTimeout time.Duration, m *metrics.Metrics, logger logrus.FieldLogger) *Pool {
	if workers < 1 {
		workers = 1
	}
	perShard := queueSize / workers
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]chan job, workers)
	for i := range shards {
		shards[i] = make(chan job, perShard)
	}

	return &Pool{
		dispatcher:  dispatcher,
		shards:      shards,
		sendTimeout: sendTimeout,
		metrics:     m,
		logger:      logger,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i, shard := range p.shards {
		p.wg.Add(1)
		go p.work(i, shard)
	}
	p.logger.WithField("workers", len(p.shards)).Info("worker pool started")
}

// Submit enqueues an event. It blocks while the target worker's queue is
// full, which pushes back on the broker. done runs after dispatch.
func (p *Pool) Submit(ctx context.Context, ev entity.AppointmentEvent, done func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	id, _ := service.MessageIDFromContext(ctx)
	j := job{messageID: id, event: ev, done: done}

	select {
	case p.shards[p.shardFor(ev.PatientEmail)] <- j:
		p.metrics.QueueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued events to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, shard := range p.shards {
		close(shard)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool drained")
}

func (p *Pool) shardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.shards)))
}

func (p *Pool) work(worker int, jobs <-chan job) {
	defer p.wg.Done()
	for j := range jobs {
		p.metrics.QueueDepth.Dec()
		p.run(worker, j)
	}
}

func (p *Pool) run(worker int, j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{"worker": worker, "message_id": j.messageID, "panic": r}).Error("worker recovered from panic")
		}
		if j.done != nil {
			j.done()
		}
	}()

	// Queued work finishes even when shutdown has started.
	ctx := service.WithMessageID(context.Background(), j.messageID)
	if p.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
	}

	p.dispatcher.Dispatch(ctx, j.event)
}
