// ABOUTME: Store interface and record types for the deployment state cache.
// ABOUTME: Remembers which agent version was last deployed to each host.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no deployment record exists for the host.
var ErrNotFound = errors.New("deployment not found")

// Deployment records one successful agent deployment. The record is
// advisory: the version probe during deployment remains the source of
// truth for upload decisions.
type Deployment struct {
	ID         string
	Host       string
	Version    string
	Arch       string
	PID        uint32
	DeployedAt time.Time
}

// Store persists deployment records.
type Store interface {
	// RecordDeployment inserts or replaces the record for dep.Host.
	RecordDeployment(ctx context.Context, dep *Deployment) error

	// GetDeployment returns the record for host, or ErrNotFound.
	GetDeployment(ctx context.Context, host string) (*Deployment, error)

	// ListDeployments returns all records, most recent first.
	ListDeployments(ctx context.Context) ([]*Deployment, error)

	// DeleteDeployment removes the record for host. Missing is not an error.
	DeleteDeployment(ctx context.Context, host string) error

	// Close releases the underlying database.
	Close() error
}
