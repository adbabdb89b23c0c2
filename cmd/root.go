package cmd

import (
	"context"
	"fmt"
	"os"

	"cluster-inspection/internal/app"
	"cluster-inspection/internal/cli"
	"cluster-inspection/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	debug        bool
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cluster-inspection",
	Short: "Inspect node, pod and event telemetry of your clusters",
	Long: `cluster-inspection fetches node, pod and event telemetry for a selected cluster
and hour from the cluster-inspection API, caches it locally and keeps the
selection across runs. Use 'serve' to expose the same operations as MCP tools.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. unreachable API, invalid time window)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "cluster-inspection version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: layered ~/.config/cluster-inspection and ./.cluster-inspection)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or yaml")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newClustersCmd())
	rootCmd.AddCommand(newSelectCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newServeCmd())
}

// newApplication loads configuration and wires services for one command run.
func newApplication() (*app.Application, error) {
	application, err := app.NewApplication(app.NewConfig(configPath, debug))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func loadConfig() (*config.InspectionConfig, error) {
	cfg := app.NewConfig(configPath, debug)
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg.Inspection, nil
}

func newPrinter(cmd *cobra.Command) (*cli.Printer, error) {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return cli.NewPrinter(cli.PrinterOptions{Format: format, Out: cmd.OutOrStdout()}), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
