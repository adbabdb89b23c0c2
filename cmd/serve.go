package cmd

import (
	"cluster-inspection/internal/app"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var opts app.ServeOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cluster inspection as MCP tools",
		Long: `Loads the cluster list and the data of the default view, then exposes
cluster_list, cluster_select, resource_fetch, refresh_all, cache_stats and
cache_clear as MCP tools.

By default the tools are served over SSE at http://<host>:<port>/sse. With --stdio
a single client is served on stdin/stdout, which is how MCP clients launch
local servers. Switching clusters refreshes the selected hour automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			defer application.Close()

			opts.Version = rootCmd.Version
			return application.Serve(commandContext(cmd), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Stdio, "stdio", false, "Serve on stdin/stdout instead of SSE")
	cmd.Flags().StringVar(&opts.Host, "host", "", "SSE listen host (default: from config)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "SSE listen port (default: from config)")
	return cmd
}
