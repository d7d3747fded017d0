// ABOUTME: One-time agent deployment: detect arch, upload if stale, start, handshake.
// ABOUTME: Each step is a commit point; any failure is terminal for the attempt.

package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AnalyseDeCircuit/oxideterm/internal/protocol"
	"github.com/AnalyseDeCircuit/oxideterm/internal/transport"
)

const (
	// DefaultRemoteDir is where the agent binary lives on the remote
	// host, relative to the login home directory.
	DefaultRemoteDir = "~/.oxideterm"

	// BinaryName is the installed name of the agent binary.
	BinaryName = "oxideterm-agent"

	archDetectTimeout   = 10 * time.Second
	versionProbeTimeout = 5 * time.Second
	remoteExecTimeout   = 30 * time.Second
	handshakeTimeout    = 10 * time.Second
)

// CommandResult is the outcome of a one-shot remote command. Exited is
// false when the channel closed without reporting an exit status, which
// some servers do for short commands.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Exited   bool
}

// HostRunner executes commands on the remote host over the secure
// connection.
type HostRunner interface {
	// RunCommand runs a one-shot command and captures its output.
	RunCommand(ctx context.Context, command string, timeout time.Duration) (CommandResult, error)

	// OpenChannel starts command on a fresh exec channel and returns the
	// duplex stream carrying its stdio.
	OpenChannel(ctx context.Context, command string) (transport.Channel, error)
}

// FileTransfer uploads file content to the remote host.
type FileTransfer interface {
	WriteContent(ctx context.Context, remotePath string, data []byte) error
}

// BinaryResolver locates the bundled agent binary for a target triple,
// returning its local path and version.
type BinaryResolver interface {
	Resolve(target string) (path string, version string, err error)
}

// Deployer orchestrates agent setup on one remote host.
type Deployer struct {
	runner    HostRunner
	files     FileTransfer
	resolver  BinaryResolver
	remoteDir string
	status    *StatusTracker
	logger    *slog.Logger
}

// Options tunes a Deployer. Zero values fall back to defaults.
type Options struct {
	RemoteDir string
	Logger    *slog.Logger
}

func New(runner HostRunner, files FileTransfer, resolver BinaryResolver, opts Options) *Deployer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent-deploy")
	remoteDir := opts.RemoteDir
	if remoteDir == "" {
		remoteDir = DefaultRemoteDir
	}
	return &Deployer{
		runner:    runner,
		files:     files,
		resolver:  resolver,
		remoteDir: remoteDir,
		status:    NewStatusTracker(logger),
		logger:    logger,
	}
}

// Status reports the state of the current deployment attempt.
func (d *Deployer) Status() Status {
	return d.status.Get()
}

// DeployAndStart runs the full deployment sequence and returns a live,
// handshake-verified transport plus the agent's identity. On any error
// the returned transport is nil and must not be used.
func (d *Deployer) DeployAndStart(ctx context.Context) (*transport.Transport, protocol.SysInfo, error) {
	attempt := uuid.NewString()
	logger := d.logger.With("attempt", attempt)
	d.status.Set(Status{Kind: StatusDeploying})

	fail := func(err error) (*transport.Transport, protocol.SysInfo, error) {
		d.status.Set(Status{Kind: StatusFailed, Reason: err.Error()})
		return nil, protocol.SysInfo{}, err
	}

	// Step 1: architecture detection.
	arch, err := d.detectArch(ctx)
	if err != nil {
		return fail(err)
	}
	target, err := TargetForArch(arch)
	if err != nil {
		d.status.Set(Status{Kind: StatusUnsupportedArch, Arch: arch})
		return nil, protocol.SysInfo{}, err
	}
	logger.Info("remote architecture detected", "arch", arch, "target", target)

	// Step 2: binary resolution.
	localPath, version, err := d.resolver.Resolve(target)
	if err != nil {
		return fail(err)
	}
	logger.Info("resolved agent binary", "path", localPath, "version", version)

	remotePath := d.remoteDir + "/" + BinaryName

	// Step 3: version probe.
	if d.needsUpload(ctx, remotePath, version) {
		// Step 4: conditional upload.
		if err := d.upload(ctx, localPath, remotePath, logger); err != nil {
			return fail(err)
		}
	} else {
		logger.Info("agent already deployed, skipping upload", "version", version)
	}

	// Step 5: start.
	ch, err := d.runner.OpenChannel(ctx, remotePath)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrStart, err))
	}
	tr := transport.New(ch, logger)

	// Step 6: handshake.
	info, err := d.handshake(ctx, tr)
	if err != nil {
		tr.Shutdown(ctx)
		return fail(err)
	}

	d.status.Set(Status{Kind: StatusReady, Version: info.Version, Arch: info.Arch, PID: info.PID})
	logger.Info("agent ready", "version", info.Version, "arch", info.Arch, "pid", info.PID)
	return tr, info, nil
}

func (d *Deployer) detectArch(ctx context.Context) (string, error) {
	res, err := d.runner.RunCommand(ctx, "uname -m", archDetectTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchDetection, err)
	}
	arch := strings.TrimSpace(res.Stdout)
	if arch == "" {
		return "", fmt.Errorf("%w: uname -m returned empty output", ErrArchDetection)
	}
	return arch, nil
}

// needsUpload probes the deployed binary's version. Only an exact
// version match skips the upload; probe failures are treated
// conservatively as "needs upload".
func (d *Deployer) needsUpload(ctx context.Context, remotePath, version string) bool {
	command := fmt.Sprintf("%s --version 2>/dev/null || echo 'NOT_FOUND'", remotePath)
	res, err := d.runner.RunCommand(ctx, command, versionProbeTimeout)
	if err != nil {
		d.logger.Debug("version probe failed, will upload", "error", err)
		return true
	}
	out := strings.TrimSpace(res.Stdout)
	switch {
	case out == "" || strings.Contains(out, "NOT_FOUND"):
		d.logger.Debug("agent not found on remote", "path", remotePath)
		return true
	case strings.Contains(out, version):
		d.logger.Debug("version match", "output", out)
		return false
	default:
		d.logger.Debug("version mismatch", "got", out, "want", version)
		return true
	}
}

// upload pushes the binary: ensure the target dir, transfer the bytes,
// mark executable. All three must succeed; a partial upload is never
// started.
func (d *Deployer) upload(ctx context.Context, localPath, remotePath string, logger *slog.Logger) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrLocalIO, localPath, err)
	}
	logger.Info("uploading agent binary", "size", len(data))

	if err := d.execStep(ctx, fmt.Sprintf("mkdir -p %s", d.remoteDir)); err != nil {
		return err
	}
	if err := d.files.WriteContent(ctx, remotePath, data); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := d.execStep(ctx, fmt.Sprintf("chmod +x %s", remotePath)); err != nil {
		return err
	}

	logger.Info("upload complete")
	return nil
}

// execStep runs a shell step of the upload sequence. A non-zero exit is
// only a warning (mkdir -p on an existing dir, for instance); only
// communication-level failures are deployment-fatal.
func (d *Deployer) execStep(ctx context.Context, command string) error {
	res, err := d.runner.RunCommand(ctx, command, remoteExecTimeout)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrExec, command, err)
	}
	switch {
	case res.Exited && res.ExitCode != 0:
		d.logger.Warn("remote command exited non-zero", "command", command, "exit", res.ExitCode, "stderr", res.Stderr)
	case !res.Exited && strings.TrimSpace(res.Stderr) != "":
		d.logger.Warn("remote command produced stderr", "command", command, "stderr", res.Stderr)
	}
	return nil
}

// handshake confirms liveness and identity: a bounded ping, then
// sys/info decoded into the expected shape. Failure at either call
// invalidates the whole deployment.
func (d *Deployer) handshake(ctx context.Context, tr *transport.Transport) (protocol.SysInfo, error) {
	if _, err := tr.CallWithTimeout(ctx, protocol.MethodSysPing, nil, handshakeTimeout); err != nil {
		return protocol.SysInfo{}, fmt.Errorf("%w: ping: %v", ErrHandshake, err)
	}

	raw, err := tr.CallWithTimeout(ctx, protocol.MethodSysInfo, nil, handshakeTimeout)
	if err != nil {
		return protocol.SysInfo{}, fmt.Errorf("%w: sys/info: %v", ErrHandshake, err)
	}
	var info protocol.SysInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return protocol.SysInfo{}, fmt.Errorf("%w: invalid sys/info response: %v", ErrHandshake, err)
	}
	return info, nil
}
