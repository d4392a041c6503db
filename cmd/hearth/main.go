package main

import (
	"fmt"
	"os"

	"github.com/lcx/hearth/config"
	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/tracing"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type globalFlags struct {
	configDir string
	env       string
}

func main() {
	var gf globalFlags
	rootCmd := &cobra.Command{
		Use:   "hearth",
		Short: "Typed packet transport for real-time games",
		Long: `hearth runs the demo lobby server or a bot client that speaks the
lobby protocol over TCP or WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&gf.configDir, "config", "c", "./configs", "config directory")
	rootCmd.PersistentFlags().StringVar(&gf.env, "env", "", "config environment subdirectory")

	rootCmd.AddCommand(
		serverCmd(&gf),
		clientCmd(&gf),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// setup points the config manager at the flags and installs the logger
// and tracer. Missing sections fall back to defaults.
func setup(gf *globalFlags) (config.ConfigManager, error) {
	cm := config.GetInstance()
	cm.SetBasePath(gf.configDir)
	if gf.env != "" {
		cm.SetEnvironment(gf.env)
	}
	if err := log.InitializeWithConfigManager(cm); err != nil && !config.IsNotFound(err) {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if err := tracing.InitTracingWithConfigManager(cm); err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	return cm, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hearth %s (%s)\n", version, commit)
		},
	}
}
