// ABOUTME: Error taxonomy for the agent transport.
// ABOUTME: Connection-level sentinels plus a typed timeout error carrying the call context.

package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned for calls issued against a transport
	// that is already dead. The caller must re-deploy to recover.
	ErrNotConnected = errors.New("agent not connected")

	// ErrChannelClosed resolves every call that was pending when the
	// channel reported close, EOF or process exit.
	ErrChannelClosed = errors.New("agent channel closed")

	// ErrNotificationsTaken is returned by TakeNotifications after the
	// single consumer handle has been handed out.
	ErrNotificationsTaken = errors.New("notification consumer already taken")
)

// TimeoutError reports a call that received no response in time. The
// pending entry is removed before this is returned, so a late response
// for the same id is dropped on arrival.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rpc %s timed out after %s", e.Method, e.Timeout)
}
