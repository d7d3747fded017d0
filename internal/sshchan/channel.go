// ABOUTME: Exec channel implementation: pumps SSH session stdio into transport events.
// ABOUTME: Stdout becomes EventData, stderr EventStderr, process exit EventExit/EventEOF.

package sshchan

import (
	"context"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/AnalyseDeCircuit/oxideterm/internal/transport"
)

const eventQueueSize = 64

// OpenChannel starts command on a fresh exec channel and returns the
// duplex stream carrying its stdin/stdout/stderr.
func (c *Client) OpenChannel(ctx context.Context, command string) (transport.Channel, error) {
	sess, err := c.conn.NewSession()
	if err != nil {
		return nil, err
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	if err := sess.Start(command); err != nil {
		_ = sess.Close()
		return nil, err
	}

	ch := &execChannel{
		sess:   sess,
		stdin:  stdin,
		events: make(chan transport.Event, eventQueueSize),
		closed: make(chan struct{}),
	}

	var pumps sync.WaitGroup
	pumps.Add(2)
	go ch.pump(stdout, transport.EventData, &pumps)
	go ch.pump(stderr, transport.EventStderr, &pumps)
	go ch.finish(&pumps)

	return ch, nil
}

type execChannel struct {
	sess   *ssh.Session
	stdin  io.WriteCloser
	events chan transport.Event

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func (c *execChannel) Write(ctx context.Context, p []byte) error {
	select {
	case <-c.closed:
		return errChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := c.stdin.Write(p)
	return err
}

func (c *execChannel) Events() <-chan transport.Event {
	return c.events
}

func (c *execChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.sess.Close()
	})
	return c.closeErr
}

// pump copies one stdio stream into events. Reads end when the process
// exits or the session is closed; sends bail out once the channel is
// closed so the goroutine never leaks.
func (c *execChannel) pump(r io.Reader, kind transport.EventKind, pumps *sync.WaitGroup) {
	defer pumps.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !c.send(transport.Event{Kind: kind, Data: data}) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// finish waits for both stdio pumps, then reports how the process
// ended and closes the event stream.
func (c *execChannel) finish(pumps *sync.WaitGroup) {
	pumps.Wait()
	defer close(c.events)

	switch err := c.sess.Wait().(type) {
	case nil:
		c.send(transport.Event{Kind: transport.EventExit, ExitStatus: 0})
	case *ssh.ExitError:
		c.send(transport.Event{Kind: transport.EventExit, ExitStatus: err.ExitStatus()})
	case *ssh.ExitMissingError:
		c.send(transport.Event{Kind: transport.EventEOF})
	default:
		c.send(transport.Event{Kind: transport.EventClosed})
	}
}

func (c *execChannel) send(ev transport.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.closed:
		return false
	}
}
