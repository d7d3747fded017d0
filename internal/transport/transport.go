// ABOUTME: RPC transport over one live channel to a started agent process.
// ABOUTME: A single IO goroutine owns the channel; calls correlate responses by id.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AnalyseDeCircuit/oxideterm/internal/protocol"
)

const (
	// DefaultCallTimeout bounds calls issued through Call.
	DefaultCallTimeout = 30 * time.Second

	// shutdownCallTimeout bounds the best-effort sys/shutdown call.
	shutdownCallTimeout = 5 * time.Second

	outgoingQueueSize     = 256
	notificationQueueSize = 1024
)

// callResult resolves one pending call: a raw result, a remote RPC
// error, or a transport-level error. Exactly one send ever happens per
// pending entry.
type callResult struct {
	result json.RawMessage
	err    error
}

// Transport multiplexes concurrent RPC calls and push notifications
// over a single channel to the agent. It is safe for concurrent use;
// the underlying channel is touched only by the internal IO goroutine.
type Transport struct {
	ch     Channel
	logger *slog.Logger

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan callResult

	outgoing chan []byte

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	done         chan struct{}

	alive atomic.Bool

	notifs      chan *protocol.Notification
	notifsTaken atomic.Bool
}

// New wraps a started agent channel and begins servicing it. The caller
// owns the returned transport and must eventually call Shutdown.
func New(ch Channel, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		ch:         ch,
		logger:     logger.With("component", "agent-transport"),
		pending:    make(map[uint64]chan callResult),
		outgoing:   make(chan []byte, outgoingQueueSize),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
		notifs:     make(chan *protocol.Notification, notificationQueueSize),
	}
	t.alive.Store(true)
	go t.ioLoop()
	return t
}

// IsAlive reports whether the transport still accepts calls.
func (t *Transport) IsAlive() bool {
	return t.alive.Load()
}

// Call issues an RPC with the default timeout and returns the raw result.
func (t *Transport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return t.CallWithTimeout(ctx, method, params, DefaultCallTimeout)
}

// CallWithTimeout issues an RPC with a custom timeout. On timeout or
// caller cancellation the pending entry is removed before returning, so
// a late response finds no match and is dropped.
func (t *Transport) CallWithTimeout(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if !t.alive.Load() {
		return nil, ErrNotConnected
	}

	id := t.nextID.Add(1)
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	line, err := protocol.EncodeLine(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request %s: %w", method, err)
	}

	resultCh := make(chan callResult, 1)
	t.mu.Lock()
	t.pending[id] = resultCh
	t.mu.Unlock()

	select {
	case t.outgoing <- line:
	case <-t.done:
		t.removePending(id)
		return nil, ErrChannelClosed
	case <-ctx.Done():
		t.removePending(id)
		return nil, ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	case <-timer.C:
		t.removePending(id)
		return nil, &TimeoutError{Method: method, Timeout: timeout}
	case <-ctx.Done():
		t.removePending(id)
		return nil, ctx.Err()
	}
}

// TakeNotifications hands out the push notification consumer. The
// transport has at most one logical subscriber, so only the first call
// succeeds; every later call gets ErrNotificationsTaken instead of a
// duplicate stream. Once taken, events are never dropped: the IO loop
// suspends on a full queue until the consumer drains it. The channel is
// closed when the transport dies.
func (t *Transport) TakeNotifications() (<-chan *protocol.Notification, error) {
	if t.notifsTaken.Swap(true) {
		return nil, ErrNotificationsTaken
	}
	return t.notifs, nil
}

// Shutdown stops the transport: a best-effort sys/shutdown call with a
// short timeout, then teardown regardless of its outcome. It returns
// once every pending call has been resolved.
func (t *Transport) Shutdown(ctx context.Context) {
	if t.alive.Load() {
		if _, err := t.CallWithTimeout(ctx, protocol.MethodSysShutdown, nil, shutdownCallTimeout); err != nil {
			t.logger.Debug("sys/shutdown call failed", "error", err)
		}
	}
	t.shutdownOnce.Do(func() { close(t.shutdownCh) })
	<-t.done
}

func (t *Transport) removePending(id uint64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// takePending removes and returns the entry for id, if any. Removal and
// lookup are one critical section so a call resolves at most once.
func (t *Transport) takePending(id uint64) (chan callResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return ch, ok
}

// failPending drains the whole pending map, resolving every outstanding
// call with err. Sends never block: each entry's channel is buffered and
// receives exactly one value in its lifetime.
func (t *Transport) failPending(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.pending {
		delete(t.pending, id)
		ch <- callResult{err: err}
	}
}

// ioLoop exclusively owns the channel. It reacts to three event
// sources: the outgoing queue, inbound channel events, and the shutdown
// signal. On exit it marks the transport dead and force-fails every
// pending call so none waits past the loop's lifetime.
func (t *Transport) ioLoop() {
	defer func() {
		t.alive.Store(false)
		if err := t.ch.Close(); err != nil {
			t.logger.Debug("channel close failed", "error", err)
		}
		t.failPending(ErrChannelClosed)
		// No dispatch runs past this point, so closing is safe. A taken
		// consumer sees the close and knows the agent is gone.
		close(t.notifs)
		close(t.done)
	}()

	var buf bytes.Buffer
	events := t.ch.Events()

	for {
		select {
		case line := <-t.outgoing:
			if err := t.ch.Write(context.Background(), line); err != nil {
				t.logger.Warn("channel write failed, closing transport", "error", err)
				return
			}

		case ev, ok := <-events:
			if !ok {
				t.logger.Info("agent event stream ended")
				return
			}
			switch ev.Kind {
			case EventData:
				buf.Write(ev.Data)
				t.drainLines(&buf)
			case EventStderr:
				logStderr(t.logger, ev.Data)
			case EventExit:
				t.logger.Info("agent exited", "status", ev.ExitStatus)
				return
			case EventEOF, EventClosed:
				t.logger.Info("agent channel closed")
				return
			}

		case <-t.shutdownCh:
			t.logger.Debug("shutdown signal received")
			return
		}
	}
}

// drainLines extracts every complete newline-terminated line from buf
// and dispatches it. A trailing partial line stays buffered until more
// data arrives.
func (t *Transport) drainLines(buf *bytes.Buffer) {
	for {
		raw := buf.Bytes()
		i := bytes.IndexByte(raw, '\n')
		if i < 0 {
			return
		}
		// Clone: raw messages outlive the buffer they were read into.
		line := bytes.Clone(bytes.TrimSpace(raw[:i]))
		buf.Next(i + 1)
		if len(line) == 0 {
			continue
		}
		t.dispatch(line)
	}
}

func (t *Transport) dispatch(line []byte) {
	msg, err := protocol.Decode(line)
	if err != nil {
		// Interleaved diagnostics or malformed JSON: recovered locally,
		// never fatal to the transport.
		t.logger.Debug("discarding non-protocol line", "line", string(line), "error", err)
		return
	}

	switch m := msg.(type) {
	case *protocol.Response:
		ch, ok := t.takePending(m.ID)
		if !ok {
			t.logger.Warn("response for unknown request id", "id", m.ID)
			return
		}
		if m.Error != nil {
			ch <- callResult{err: m.Error}
		} else {
			ch <- callResult{result: m.Result}
		}

	case *protocol.Notification:
		if t.notifsTaken.Load() {
			// A taken consumer owns every event: suspend until it
			// drains or the transport is shut down.
			select {
			case t.notifs <- m:
			case <-t.shutdownCh:
			}
			return
		}
		// No consumer yet: a full queue drops the event rather than
		// stalling the IO loop forever.
		select {
		case t.notifs <- m:
		default:
			t.logger.Warn("notification queue full, dropping", "method", m.Method)
		}
	}
}

func logStderr(logger *slog.Logger, data []byte) {
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			logger.Debug("agent stderr", "line", string(trimmed))
		}
	}
}
