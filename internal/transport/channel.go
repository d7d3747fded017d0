// ABOUTME: Channel abstraction over the duplex byte stream carrying agent stdio.
// ABOUTME: Implemented by sshchan for real SSH exec channels and by fakes in tests.

package transport

import "context"

// EventKind identifies what an exec channel produced.
type EventKind int

const (
	// EventData is agent stdout, the protocol bytes.
	EventData EventKind = iota
	// EventStderr is agent stderr, diagnostic output that is never parsed.
	EventStderr
	// EventExit reports the remote process exit status.
	EventExit
	// EventEOF means the remote side finished writing.
	EventEOF
	// EventClosed means the channel itself is gone.
	EventClosed
)

// Event is one occurrence on a Channel. Data is set for EventData and
// EventStderr; ExitStatus for EventExit.
type Event struct {
	Kind       EventKind
	Data       []byte
	ExitStatus int
}

// Channel is the duplex stream to a started agent process. It is not
// safe for concurrent use from multiple goroutines; the Transport's IO
// goroutine is its only user once the transport owns it.
type Channel interface {
	// Write sends bytes to the agent's stdin.
	Write(ctx context.Context, p []byte) error

	// Events delivers stdout/stderr/lifecycle events in channel order.
	// The implementation closes the channel after EventExit or EventClosed.
	Events() <-chan Event

	// Close tears the channel down. Idempotent.
	Close() error
}
