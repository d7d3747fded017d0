// ABOUTME: SSH connection setup for the CLI: key auth plus known_hosts verification.
// ABOUTME: Owns the *ssh.Client handed to the sshchan adapter.

package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// sshFlags are the connection options shared by every remote command.
type sshFlags struct {
	host     string
	port     string
	keyPath  string
	insecure bool
}

// splitTarget parses user@host, defaulting the user to $USER.
func splitTarget(target string) (user, host string, err error) {
	if target == "" {
		return "", "", fmt.Errorf("--host is required (user@host)")
	}
	if i := strings.LastIndex(target, "@"); i >= 0 {
		return target[:i], target[i+1:], nil
	}
	user = os.Getenv("USER")
	if user == "" {
		return "", "", fmt.Errorf("no user in --host %q and $USER is unset", target)
	}
	return user, target, nil
}

func dialSSH(f sshFlags) (*ssh.Client, error) {
	user, host, err := splitTarget(f.host)
	if err != nil {
		return nil, err
	}

	keyPath := f.keyPath
	if keyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		keyPath = filepath.Join(home, ".ssh", "id_ed25519")
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", keyPath, err)
	}

	hostKeyCallback, err := hostKeyVerifier(f.insecure)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(host, f.port), cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", host, err)
	}
	return client, nil
}

func hostKeyVerifier(insecure bool) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opt-in via --insecure
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home dir: %w", err)
	}
	cb, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts (use --insecure to skip): %w", err)
	}
	return cb, nil
}
