// ABOUTME: Deployment lifecycle status, tracked per attempt and readable concurrently.
// ABOUTME: Transitions are monotonic within one attempt: NotDeployed → Deploying → terminal.

package deploy

import (
	"fmt"
	"log/slog"
	"sync"
)

// StatusKind labels where a deployment attempt stands.
type StatusKind int

const (
	StatusNotDeployed StatusKind = iota
	StatusDeploying
	StatusReady
	StatusFailed
	StatusUnsupportedArch
)

// Status is the current deployment state. Version/Arch/PID are set for
// StatusReady, Reason for StatusFailed, Arch for StatusUnsupportedArch.
type Status struct {
	Kind    StatusKind
	Version string
	Arch    string
	PID     uint32
	Reason  string
}

func (s Status) String() string {
	switch s.Kind {
	case StatusNotDeployed:
		return "Not deployed"
	case StatusDeploying:
		return "Deploying..."
	case StatusReady:
		return fmt.Sprintf("Ready v%s %s (pid %d)", s.Version, s.Arch, s.PID)
	case StatusFailed:
		return fmt.Sprintf("Failed: %s", s.Reason)
	case StatusUnsupportedArch:
		return fmt.Sprintf("Unsupported arch: %s", s.Arch)
	default:
		return "Unknown"
	}
}

// StatusTracker holds the status of the current deployment attempt.
// Safe for concurrent readers; a new attempt restarts from Deploying.
type StatusTracker struct {
	mu     sync.RWMutex
	status Status
	logger *slog.Logger
}

func NewStatusTracker(logger *slog.Logger) *StatusTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusTracker{
		status: Status{Kind: StatusNotDeployed},
		logger: logger.With("component", "agent-deploy"),
	}
}

func (t *StatusTracker) Set(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
	t.logger.Info("deployment status", "status", s.String())
}

func (t *StatusTracker) Get() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
