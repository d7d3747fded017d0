// ABOUTME: Deployment failure taxonomy; each step failure is distinguishable.
// ABOUTME: Callers branch with errors.Is/errors.As to decide whether a retry makes sense.

package deploy

import (
	"errors"
	"fmt"
)

// Step failure categories. Each wraps the underlying cause.
var (
	ErrArchDetection = errors.New("architecture detection failed")
	ErrLocalIO       = errors.New("local i/o error")
	ErrUpload        = errors.New("upload failed")
	ErrExec          = errors.New("remote command execution failed")
	ErrStart         = errors.New("agent start failed")
	ErrHandshake     = errors.New("handshake failed")
)

// UnsupportedArchError: the remote reported an architecture outside the
// supported set. There is no fallback binary; retrying never helps.
type UnsupportedArchError struct {
	Arch string
}

func (e *UnsupportedArchError) Error() string {
	return fmt.Sprintf("unsupported architecture %q", e.Arch)
}

// BinaryNotFoundError: no bundled agent binary exists for the resolved
// target triple.
type BinaryNotFoundError struct {
	Target string
	Reason string
}

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("agent binary for %s not found: %s", e.Target, e.Reason)
}
