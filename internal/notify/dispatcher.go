// AngelaMos | 2026
// dispatcher.go

package notify

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"

	"github.com/carterperez-dev/payroll-ledger/internal/metrics"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Dispatcher hands messages to a fixed set of workers, sharding on
// Message.Key so messages about the same subject arrive in order. Send never
// blocks; a full shard drops the message with ErrQueueFull.
type Dispatcher struct {
	workers []chan Message
	next    Notifier
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(
	numWorkers, queueSize int,
	next Notifier,
	logger *slog.Logger,
) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	d := &Dispatcher{
		workers: make([]chan Message, numWorkers),
		next:    next,
		logger:  logger,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Message, queueSize)
	}
	return d
}

// Start launches the workers. They exit when ctx is cancelled or after Close
// has drained their queues.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

func (d *Dispatcher) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	idx := d.shardIndex(msg.shardKey())
	select {
	case d.workers[idx] <- msg:
		metrics.NotificationQueueDepth.
			WithLabelValues(strconv.Itoa(idx)).
			Set(float64(len(d.workers[idx])))
		return nil
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Workers reports the number of shards.
func (d *Dispatcher) Workers() int {
	return len(d.workers)
}

// Pending reports how many messages are queued across all shards.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, ch := range d.workers {
		n += len(ch)
	}
	return n
}

func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan Message) {
	defer d.wg.Done()

	workerID := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			metrics.NotificationQueueDepth.
				WithLabelValues(workerID).
				Set(float64(len(ch)))

			if err := d.next.Send(ctx, msg); err != nil {
				metrics.NotificationsTotal.WithLabelValues("failed").Inc()
				d.logger.ErrorContext(ctx, "notification delivery failed",
					"error", err,
					"to", msg.To,
					"subject", msg.Subject,
					"worker_id", id,
				)
				continue
			}
			metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		}
	}
}
