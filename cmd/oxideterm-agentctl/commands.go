// ABOUTME: Subcommand implementations: deploy, RPC helpers, and deployment history.
// ABOUTME: Every remote command deploys first; the version probe makes repeats cheap.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/AnalyseDeCircuit/oxideterm/internal/config"
	"github.com/AnalyseDeCircuit/oxideterm/internal/deploy"
	"github.com/AnalyseDeCircuit/oxideterm/internal/protocol"
	"github.com/AnalyseDeCircuit/oxideterm/internal/sshchan"
	"github.com/AnalyseDeCircuit/oxideterm/internal/store"
	"github.com/AnalyseDeCircuit/oxideterm/internal/transport"
)

// remoteFlags parses the connection flags shared by remote commands and
// returns the remaining positional arguments.
func remoteFlags(name string, cfg *config.Config) (*flag.FlagSet, *sshFlags, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	f := &sshFlags{}
	fs.StringVar(&f.host, "host", "", "Remote target (user@host)")
	fs.StringVar(&f.port, "port", "22", "SSH port")
	fs.StringVar(&f.keyPath, "key", "", "Private key path (default ~/.ssh/id_ed25519)")
	fs.BoolVar(&f.insecure, "insecure", false, "Skip host key verification")
	binDir := fs.String("binaries", cfg.Agent.BinariesDir, "Directory with bundled agent binaries")
	return fs, f, binDir
}

// withAgent dials, deploys, hands a live transport to fn, and shuts the
// agent down afterwards.
func withAgent(ctx context.Context, name string, args []string, fn func(ctx context.Context, cfg *config.Config, tr *transport.Transport, info protocol.SysInfo, rest []string) error) error {
	cfg := loadConfig()
	fs, sshf, binDir := remoteFlags(name, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	if *binDir == "" {
		return fmt.Errorf("no binaries directory: set agent.binaries_dir in %s or pass --binaries", getConfigPath())
	}
	resolver, err := deploy.NewManifestResolver(*binDir)
	if err != nil {
		return err
	}

	conn, err := dialSSH(*sshf)
	if err != nil {
		return err
	}
	defer conn.Close()

	sshc := sshchan.New(conn, logger)
	deployer := deploy.New(sshc, sshc, resolver, deploy.Options{
		RemoteDir: cfg.Agent.RemoteDir,
		Logger:    logger,
	})

	tr, info, err := deployer.DeployAndStart(ctx)
	if err != nil {
		return fmt.Errorf("deploying agent: %w", err)
	}
	defer tr.Shutdown(ctx)

	recordDeployment(ctx, cfg, sshf.host, info, logger)

	return fn(ctx, cfg, tr, info, fs.Args())
}

// osArgs returns the arguments after the subcommand name.
func osArgs() []string {
	if len(os.Args) > 2 {
		return os.Args[2:]
	}
	return nil
}

func recordDeployment(ctx context.Context, cfg *config.Config, host string, info protocol.SysInfo, logger *slog.Logger) {
	s, err := openStore(cfg)
	if err != nil {
		logger.Warn("deployment store unavailable", "error", err)
		return
	}
	defer s.Close()
	err = s.RecordDeployment(ctx, &store.Deployment{
		ID:         uuid.NewString(),
		Host:       host,
		Version:    info.Version,
		Arch:       info.Arch,
		PID:        info.PID,
		DeployedAt: time.Now(),
	})
	if err != nil {
		logger.Warn("recording deployment failed", "error", err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		path = filepath.Join(getDataPath(), "deployments.db")
	}
	return store.NewSQLiteStore(path)
}

func runDeploy(ctx context.Context) error {
	return withAgent(ctx, "deploy", osArgs(), func(ctx context.Context, cfg *config.Config, tr *transport.Transport, info protocol.SysInfo, rest []string) error {
		green := color.New(color.FgGreen)
		green.Print("✓ ")
		fmt.Printf("agent ready: v%s %s (pid %d)\n", info.Version, info.Arch, info.PID)
		return nil
	})
}

func runPing(ctx context.Context) error {
	return withAgent(ctx, "ping", osArgs(), func(ctx context.Context, cfg *config.Config, tr *transport.Transport, info protocol.SysInfo, rest []string) error {
		start := time.Now()
		if _, err := tr.Call(ctx, protocol.MethodSysPing, nil); err != nil {
			return err
		}
		fmt.Printf("pong from pid %d in %s\n", info.PID, time.Since(start).Round(time.Millisecond))
		return nil
	})
}

func runInfo(ctx context.Context) error {
	return withAgent(ctx, "info", osArgs(), func(ctx context.Context, cfg *config.Config, tr *transport.Transport, info protocol.SysInfo, rest []string) error {
		cyan := color.New(color.FgCyan)
		cyan.Println("Remote agent")
		fmt.Printf("  version: %s\n", info.Version)
		fmt.Printf("  arch:    %s\n", info.Arch)
		fmt.Printf("  os:      %s\n", info.OS)
		fmt.Printf("  pid:     %d\n", info.PID)
		return nil
	})
}

func runRead(ctx context.Context) error {
	return withAgent(ctx, "read", osArgs(), func(ctx context.Context, cfg *config.Config, tr *transport.Transport, info protocol.SysInfo, rest []string) error {
		if len(rest) != 1 {
			return fmt.Errorf("usage: read --host user@host PATH")
		}
		raw, err := tr.CallWithTimeout(ctx, protocol.MethodFSReadFile,
			protocol.ReadFileParams{Path: rest[0]}, cfg.Agent.CallTimeout)
		if err != nil {
			return err
		}
		var result protocol.ReadFileResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("decoding fs/readFile result: %w", err)
		}
		fmt.Print(result.Content)
		return nil
	})
}

func runGrep(ctx context.Context) error {
	return withAgent(ctx, "grep", osArgs(), func(ctx context.Context, cfg *config.Config, tr *transport.Transport, info protocol.SysInfo, rest []string) error {
		if len(rest) != 2 {
			return fmt.Errorf("usage: grep --host user@host PATTERN PATH")
		}
		raw, err := tr.CallWithTimeout(ctx, protocol.MethodSearchGrep,
			protocol.GrepParams{Pattern: rest[0], Path: rest[1]}, cfg.Agent.CallTimeout)
		if err != nil {
			return err
		}
		var matches []protocol.GrepMatch
		if err := json.Unmarshal(raw, &matches); err != nil {
			return fmt.Errorf("decoding search/grep result: %w", err)
		}
		magenta := color.New(color.FgMagenta)
		for _, m := range matches {
			magenta.Printf("%s:%d:%d: ", m.Path, m.Line, m.Column)
			fmt.Println(m.Text)
		}
		return nil
	})
}

func runWatch(ctx context.Context) error {
	return withAgent(ctx, "watch", osArgs(), func(ctx context.Context, cfg *config.Config, tr *transport.Transport, info protocol.SysInfo, rest []string) error {
		if len(rest) != 1 {
			return fmt.Errorf("usage: watch --host user@host PATH")
		}
		path := rest[0]

		notifs, err := tr.TakeNotifications()
		if err != nil {
			return err
		}
		if _, err := tr.Call(ctx, protocol.MethodWatchStart, protocol.WatchStartParams{Path: path}); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = tr.Call(stopCtx, protocol.MethodWatchStop, protocol.WatchStopParams{Path: path})
		}()

		yellow := color.New(color.FgYellow)
		fmt.Printf("watching %s (ctrl-c to stop)\n", path)
		for {
			select {
			case <-ctx.Done():
				return nil
			case n, ok := <-notifs:
				if !ok {
					return fmt.Errorf("agent connection lost")
				}
				if ev, ok := n.AsWatchEvent(); ok {
					yellow.Printf("%-8s ", ev.Kind)
					fmt.Println(ev.Path)
				}
			}
		}
	})
}

func runHistory(ctx context.Context) error {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	deps, err := s.ListDeployments(ctx)
	if err != nil {
		return err
	}
	if len(deps) == 0 {
		fmt.Println("no recorded deployments")
		return nil
	}
	cyan := color.New(color.FgCyan)
	for _, d := range deps {
		cyan.Printf("%-30s ", d.Host)
		fmt.Printf("v%-10s %-20s %s\n", d.Version, d.Arch, d.DeployedAt.Format(time.RFC3339))
	}
	return nil
}

func runForget(ctx context.Context) error {
	fs := flag.NewFlagSet("forget", flag.ExitOnError)
	host := fs.String("host", "", "Remote target (user@host)")
	if err := fs.Parse(osArgs()); err != nil {
		return err
	}
	if *host == "" {
		return fmt.Errorf("--host is required")
	}

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.DeleteDeployment(ctx, *host)
}
