// Package main provides the tracktime binary: the OAuth and tracker proxy
// server plus a few admin commands that work directly on the settings store.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "tracktime"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	store      string
	location   string
}

func rootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Time tracking dashboard backend",
		Long: `tracktime serves the tracker OAuth connect flow and signs tracker API
requests with either basic credentials or an OAuth access token.

Configuration is read from --config (YAML) and TRACKTIME_* environment
variables. Flags override both.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.store, "store", "", "Settings store: fs, gorm, gae, keyring or memory")
	cmd.PersistentFlags().StringVar(&g.location, "store-location", "", "Settings file path, DSN or keychain service")

	cmd.AddCommand(serveCmd(&g), statusCmd(&g), adminTokenCmd(&g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}
