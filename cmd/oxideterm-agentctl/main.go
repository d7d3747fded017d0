// ABOUTME: Entry point for the oxideterm agent control CLI
// ABOUTME: Deploys the remote agent over SSH and issues RPCs against it

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AnalyseDeCircuit/oxideterm/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the agent config file.
// Priority: OXIDETERM_CONFIG env var > XDG_CONFIG_HOME/oxideterm/agent.yaml > ~/.config/oxideterm/agent.yaml
func getConfigPath() string {
	if envPath := os.Getenv("OXIDETERM_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "agent.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "oxideterm", "agent.yaml")
}

// getDataPath returns the path to the oxideterm data directory.
// Priority: XDG_DATA_HOME/oxideterm > ~/.local/share/oxideterm
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "oxideterm")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("oxideterm-agentctl %s\n\n", version)
		fmt.Println("Usage: oxideterm-agentctl <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  deploy --host user@host      Deploy and start the agent on a host")
		fmt.Println("  ping --host user@host        Deploy if needed, then ping the agent")
		fmt.Println("  info --host user@host        Show the running agent's identity")
		fmt.Println("  read --host user@host PATH   Read a remote file through the agent")
		fmt.Println("  grep --host user@host PAT P  Search remote files through the agent")
		fmt.Println("  watch --host user@host PATH  Stream file change events for a path")
		fmt.Println("  history                      List recorded deployments")
		fmt.Println("  forget --host user@host      Drop the deployment record for a host")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "deploy":
		err = runDeploy(ctx)
	case "ping":
		err = runPing(ctx)
	case "info":
		err = runInfo(ctx)
	case "read":
		err = runRead(ctx)
	case "grep":
		err = runGrep(ctx)
	case "watch":
		err = runWatch(ctx)
	case "history":
		err = runHistory(ctx)
	case "forget":
		err = runForget(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		// Missing config is fine for commands that only need defaults;
		// binaries_dir can still come from the flag.
		return config.Default()
	}
	return cfg
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
