// ABOUTME: Binds an established SSH connection to the deploy/transport collaborator interfaces.
// ABOUTME: One-shot command execution, exec channels for agent stdio, and content upload via cat.

package sshchan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/AnalyseDeCircuit/oxideterm/internal/deploy"
)

// Client adapts an *ssh.Client to the HostRunner and FileTransfer
// collaborator interfaces. It does not own the underlying connection;
// authentication and connection lifetime stay with the caller.
type Client struct {
	conn   *ssh.Client
	logger *slog.Logger
}

func New(conn *ssh.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, logger: logger.With("component", "sshchan")}
}

// RunCommand executes a one-shot command, capturing stdout/stderr and
// the exit status. Timeouts and context cancellation tear the session
// down and surface as errors; those are communication failures, not
// command failures.
func (c *Client) RunCommand(ctx context.Context, command string, timeout time.Duration) (deploy.CommandResult, error) {
	sess, err := c.conn.NewSession()
	if err != nil {
		return deploy.CommandResult{}, fmt.Errorf("opening session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Start(command); err != nil {
		return deploy.CommandResult{}, fmt.Errorf("starting command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		_ = sess.Close()
		return deploy.CommandResult{}, fmt.Errorf("command %q timed out after %s", command, timeout)
	case <-ctx.Done():
		_ = sess.Close()
		return deploy.CommandResult{}, ctx.Err()
	}

	res := deploy.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Exited: true,
	}
	switch e := err.(type) {
	case nil:
	case *ssh.ExitError:
		res.ExitCode = e.ExitStatus()
	case *ssh.ExitMissingError:
		// Channel closed without an exit status; common for short
		// commands. The deployer decides what to make of it.
		res.Exited = false
	default:
		return deploy.CommandResult{}, fmt.Errorf("running %q: %w", command, err)
	}
	return res, nil
}

// WriteContent uploads bytes to remotePath by streaming them into a
// remote `cat`. The parent directory must already exist.
func (c *Client) WriteContent(ctx context.Context, remotePath string, data []byte) error {
	sess, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return fmt.Errorf("opening stdin: %w", err)
	}
	var stderr bytes.Buffer
	sess.Stderr = &stderr

	command := "cat > " + QuoteRemotePath(remotePath)
	if err := sess.Start(command); err != nil {
		return fmt.Errorf("starting upload: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		if _, werr := stdin.Write(data); werr != nil {
			_ = stdin.Close()
			done <- werr
			return
		}
		done <- stdin.Close()
	}()

	select {
	case err = <-done:
		if err != nil {
			_ = sess.Close()
			return fmt.Errorf("writing upload stream: %w", err)
		}
	case <-ctx.Done():
		_ = sess.Close()
		return ctx.Err()
	}

	if err := sess.Wait(); err != nil {
		return fmt.Errorf("upload to %s failed: %w (stderr: %s)", remotePath, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// QuoteRemotePath single-quotes a path for the remote shell while
// keeping a leading ~/ bare so home expansion still happens.
func QuoteRemotePath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return "~/" + shellQuote(rest)
	}
	return shellQuote(path)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var errChannelClosed = errors.New("exec channel closed")
