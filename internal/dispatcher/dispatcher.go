package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned when dispatching after Close.
var ErrClosed = errors.New("dispatcher closed")

// Queued is the result of dispatching to a buffered command.
const Queued = "queued"

// Event is one unit of work routed by command name.
type Event struct {
	Command   string
	Payload   any
	Timestamp time.Time

	barrier chan struct{}
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is the structured logger used by Logged handlers.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*route)

// Buffered runs the handler on its own goroutine behind a queue of size.
func Buffered(size int) Option {
	return func(r *route) { r.size = size }
}

// Blocking makes a full queue apply backpressure instead of rejecting.
func Blocking() Option {
	return func(r *route) { r.blocking = true }
}

// Logged wraps the handler with debug and error logging.
func Logged() Option {
	return func(r *route) { r.logged = true }
}

type route struct {
	handle HandlerFunc
	queue  chan Event // nil for synchronous commands

	size     int
	blocking bool
	logged   bool
}

// Dispatcher routes events to registered handlers. Buffered commands keep
// arrival order; Sync and Close wait for what is already queued.
type Dispatcher struct {
	routes  map[string]*route
	logger  Logger
	metrics *instruments

	mu     sync.RWMutex // guards closed against sends on queue
	closed bool
	lanes  sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{routes: make(map[string]*route), logger: logger}
	m, err := newInstruments(d.queueLens)
	if err != nil {
		return nil, err
	}
	d.metrics = m
	return d, nil
}

func (d *Dispatcher) queueLens() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	lens := make(map[string]int)
	for cmd, r := range d.routes {
		if r.queue != nil {
			lens[cmd] = len(r.queue)
		}
	}
	return lens
}

// Register installs h for command. Registration happens before dispatching
// starts and is not safe to run concurrently with Dispatch.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{}
	for _, opt := range opts {
		opt(r)
	}
	r.handle = h
	if r.logged {
		r.handle = d.logged(command, h)
	}
	if r.size > 0 {
		r.queue = make(chan Event, r.size)
		d.lanes.Add(1)
		go d.drain(command, r)
	}

	d.mu.Lock()
	d.routes[command] = r
	d.mu.Unlock()
}

// HasHandler reports whether command is registered.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

func (d *Dispatcher) lookup(command string) (*route, error) {
	d.mu.RLock()
	r, ok := d.routes[command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", command)
	}
	return r, nil
}

// Dispatch runs synchronous handlers inline and queues buffered ones,
// returning Queued.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	r, err := d.lookup(e.Command)
	if err != nil {
		return nil, err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if r.queue == nil {
		return r.handle(e)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	if r.blocking {
		r.queue <- e
		return Queued, nil
	}
	select {
	case r.queue <- e:
		return Queued, nil
	default:
		d.metrics.rejected(e.Command)
		return nil, fmt.Errorf("queue full: %s", e.Command)
	}
}

// Sync blocks until every event dispatched to command before the call has
// been handled. It returns immediately for synchronous commands.
func (d *Dispatcher) Sync(ctx context.Context, command string) error {
	r, err := d.lookup(command)
	if err != nil {
		return err
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	if r.queue == nil {
		d.mu.RUnlock()
		return nil
	}
	reached := make(chan struct{})
	select {
	case r.queue <- Event{Command: command, barrier: reached}:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further events and waits until every queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
		}
	}
	d.mu.Unlock()
	d.lanes.Wait()
}

func (d *Dispatcher) drain(command string, r *route) {
	defer d.lanes.Done()
	for e := range r.queue {
		if e.barrier != nil {
			close(e.barrier)
			continue
		}
		start := time.Now()
		_, err := r.handle(e)
		d.metrics.handled(command, time.Since(start), err)
	}
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "payload", fmt.Sprintf("%T", e.Payload))
		res, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
			return res, err
		}
		d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		return res, nil
	}
}
