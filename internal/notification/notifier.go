package notification

import (
	"context"
	"sync"
	"time"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

const (
	// DefaultQueueSize bounds the number of events waiting for delivery.
	DefaultQueueSize = 64
	// DefaultSendTimeout bounds a single sink delivery.
	DefaultSendTimeout = 10 * time.Second
)

// Options configures a Notifier.
type Options struct {
	OnlyNOK     bool
	QueueSize   int
	SendTimeout time.Duration
	Breaker     CircuitBreakerConfig
}

type sinkEntry struct {
	sink    Sink
	breaker *circuitBreaker
}

// Notifier fans inspection events out to its sinks on a background worker.
// A nil *Notifier accepts and drops every event.
type Notifier struct {
	opts  Options
	sinks []sinkEntry
	queue chan InspectionEvent
	done  chan struct{}
	log   logger.Logger

	// cancels in-flight deliveries when Close runs out of time
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewNotifier starts a notifier delivering to sinks.
func NewNotifier(opts Options, sinks ...Sink) *Notifier {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		opts:   opts,
		queue:  make(chan InspectionEvent, opts.QueueSize),
		done:   make(chan struct{}),
		log:    GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		n.sinks = append(n.sinks, sinkEntry{sink: s, breaker: newCircuitBreaker(opts.Breaker, s.Name())})
	}

	go n.run()
	return n
}

// Sinks returns the names of the configured sinks.
func (n *Notifier) Sinks() []string {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.sinks))
	for _, e := range n.sinks {
		names = append(names, e.sink.Name())
	}
	return names
}

// Notify queues event for delivery. It never blocks; it returns false when
// the event was filtered out or dropped.
func (n *Notifier) Notify(event InspectionEvent) bool {
	if n == nil || len(n.sinks) == 0 {
		return false
	}
	if n.opts.OnlyNOK && !event.IsNOK() {
		return false
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return false
	}

	select {
	case n.queue <- event:
		return true
	default:
		n.log.Warn("notification queue full, dropping event",
			logger.Uint64("analysis_id", uint64(event.AnalysisID)),
			logger.Int("queue_size", cap(n.queue)))
		return false
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for event := range n.queue {
		n.deliver(event)
	}
}

func (n *Notifier) deliver(event InspectionEvent) {
	for _, e := range n.sinks {
		ctx, cancel := context.WithTimeout(n.ctx, n.opts.SendTimeout)
		start := time.Now()
		err := e.breaker.Call(ctx, func(ctx context.Context) error {
			return e.sink.Send(ctx, event)
		})
		cancel()

		if err != nil {
			level := n.log.Warn
			if errors.Is(err, ErrCircuitOpen) {
				level = n.log.Debug
			}
			level("notification delivery failed",
				logger.String("sink", e.sink.Name()),
				logger.Uint64("analysis_id", uint64(event.AnalysisID)),
				logger.Error(err))
			continue
		}
		n.log.Debug("notification delivered",
			logger.String("sink", e.sink.Name()),
			logger.Uint64("analysis_id", uint64(event.AnalysisID)),
			logger.Duration("latency", time.Since(start)))
	}
}

// Close stops accepting events, drains the queue and closes the sinks. When
// ctx expires first, in-flight deliveries are cancelled and the rest dropped.
func (n *Notifier) Close(ctx context.Context) error {
	if n == nil {
		return nil
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	var drainErr error
	select {
	case <-n.done:
	case <-ctx.Done():
		n.cancel()
		<-n.done
		drainErr = errors.New(ctx.Err()).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("operation", "drain_queue").
			Build()
	}
	n.cancel()

	var errs []error
	if drainErr != nil {
		errs = append(errs, drainErr)
	}
	for _, e := range n.sinks {
		if err := e.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
