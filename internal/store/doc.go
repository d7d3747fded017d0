// Package store persists deployment state across client restarts: which
// agent version was last deployed to which host, and when.
//
// Records are advisory. The deployer always probes the remote binary's
// version before deciding whether to upload; the store only lets the
// CLI show deployment history without touching the network.
package store
