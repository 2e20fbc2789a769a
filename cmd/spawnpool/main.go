package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/spawnpool/pkg/config"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "spawnpool",
		Short: "spawnpool - template-keyed object recycling pool",
		Long: `spawnpool keeps per-template queues of reusable entities, grows them on
demand and deactivates spawned instances once their lifetime elapses.

The CLI validates pool configurations and runs synthetic spawn workloads
against them.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	var envFile string
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Additional .env file to load before reading configuration")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if envFile == "" {
			return nil
		}
		return godotenv.Load(envFile)
	}

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "spawnpool v%s\n", version)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newValidateCommand())
	root.AddCommand(newSimulateCommand())
	return root
}

func newValidateCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pool configuration",
		Long: `Load a YAML pool configuration, apply SPAWNPOOL_* environment overrides
and validate it.

Example:
  spawnpool validate --config spawnpool.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadViper(configFile)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration %q is valid\n", cfg.Name)
			fmt.Fprintf(w, "Tick interval: %s\n", cfg.Pool.TickInterval)
			fmt.Fprintf(w, "Templates (%d):\n", len(cfg.Templates))
			for _, t := range cfg.Templates {
				lifetime := "untracked"
				if t.Lifetime > 0 {
					lifetime = t.Lifetime.String()
				}
				fmt.Fprintf(w, "  - %s: size=%d warm=%d lifetime=%s recycle_without_lifetime=%t\n",
					t.ID, t.Size, t.Warm, lifetime, t.RecycleWithoutLifetime)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration YAML file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
