// Package transport multiplexes RPC calls and push notifications over a
// single channel to a running remote agent.
//
// # Single Owner
//
// The channel primitive is not safe for concurrent read and write from
// multiple goroutines, so exactly one IO goroutine per Transport owns
// it. Everything else talks to that goroutine through queues: callers
// enqueue serialized requests, the loop writes them, reads inbound
// bytes, and reacts to a shutdown signal in a three-way select.
//
// # Correlation
//
// Each call takes a fresh id from a per-transport counter and registers
// a buffered completion channel in the pending map. The map is the only
// shared mutable state and is guarded by a mutex held just for insert
// and remove, never across a wait. Responses resolve the matching entry;
// a call that times out or is cancelled removes its own entry first, so
// a late response finds nothing and is logged and dropped.
//
// # Liveness
//
// A Transport is alive or dead, nothing in between. When the channel
// reports EOF, close or process exit, or Shutdown is requested, the
// loop marks the transport dead and fails every pending call with
// ErrChannelClosed. Dead transports reject new calls immediately;
// recovery means running the deployer again.
package transport
