package audit

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/xdg/telecommand/internal/clog"
)

const (
	// DefaultForwardTimeout bounds a single forward attempt.
	DefaultForwardTimeout = 2 * time.Second
	// defaultQueueSize is how many forwards may wait before new ones are dropped.
	defaultQueueSize = 256
)

// Options configures a Sink. The zero value keeps history only.
type Options struct {
	// Retain caps the in-memory history. Zero keeps every entry.
	Retain int
	// Log receives one Format line per entry.
	Log io.Writer
	// Forwarder receives a copy of every entry off the calling goroutine.
	Forwarder Forwarder
	// ForwardTimeout bounds each forward. Zero means DefaultForwardTimeout.
	ForwardTimeout time.Duration
	// QueueSize bounds pending forwards. Zero means a built-in default.
	QueueSize int
}

// Sink is the worker's audit trail. Record never blocks on the forwarder
// and forwarding failures never affect the local history.
type Sink struct {
	mu       sync.Mutex
	history  []Entry
	retain   int
	closed   bool
	dropping bool // a drop was logged and no forward has been queued since

	logMu sync.Mutex // serializes writes to log
	log   io.Writer

	forwarder Forwarder
	timeout   time.Duration
	queue     chan Entry
	done      chan struct{}
	closeOnce sync.Once
}

// NewSink returns a running Sink. Call Close to drain pending forwards.
func NewSink(opts Options) *Sink {
	s := &Sink{
		retain:    opts.Retain,
		log:       opts.Log,
		forwarder: opts.Forwarder,
		timeout:   opts.ForwardTimeout,
		done:      make(chan struct{}),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultForwardTimeout
	}
	if s.forwarder == nil {
		close(s.done)
		return s
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	s.queue = make(chan Entry, size)
	go s.forwardLoop()
	return s
}

// Record appends e to the history, writes it to the audit log and queues
// it for forwarding.
func (s *Sink) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	var line string
	if s.log != nil {
		line = e.Format()
	}

	s.mu.Lock()
	s.history = append(s.history, e)
	if s.retain > 0 && len(s.history) > s.retain {
		s.history = append(s.history[:0:0], s.history[len(s.history)-s.retain:]...)
	}
	s.enqueue(e)
	s.mu.Unlock()

	if s.log != nil {
		s.logMu.Lock()
		_, err := fmt.Fprintln(s.log, line)
		s.logMu.Unlock()
		if err != nil {
			clog.Warn("audit: write log line: %v", err)
		}
	}
}

// enqueue hands e to the forwarder without blocking. The first drop of a
// run is logged as a warning; later ones only at debug until the queue
// accepts an entry again. Called with mu held.
func (s *Sink) enqueue(e Entry) {
	if s.queue == nil || s.closed {
		return
	}
	select {
	case s.queue <- e:
		s.dropping = false
	default:
		if !s.dropping {
			clog.Warn("audit: forward queue full, dropping entries starting with %s", e.ID)
			s.dropping = true
			return
		}
		clog.Debug("audit: forward queue full, dropping entry %s", e.ID)
	}
}

// Recent returns up to n entries, newest first. It returns an empty
// slice, never nil, when there is no history.
func (s *Sink) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > len(s.history) {
		n = len(s.history)
	}
	if n < 0 {
		n = 0
	}
	out := make([]Entry, 0, n)
	for i := len(s.history) - 1; i >= len(s.history)-n; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// Len reports the number of retained entries.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Close stops accepting forwards and waits for queued ones to finish.
// Entries recorded after Close still reach the history and the log.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.queue != nil {
			close(s.queue)
		}
		s.mu.Unlock()
	})
	<-s.done
}

func (s *Sink) forwardLoop() {
	defer close(s.done)
	for e := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.forwarder.Forward(ctx, e); err != nil {
			clog.Debug("audit: forward %s: %v", e.ID, err)
		}
		cancel()
	}
}
