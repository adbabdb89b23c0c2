package cmd

import (
	"encoding/json"
	"fmt"

	"cluster-inspection/internal/cli"
	"cluster-inspection/internal/color"
	"cluster-inspection/internal/state"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	view  string
	start string
	end   string
	json  bool
	copy  bool
}

func newFetchCmd() *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the collections of a view for the selected cluster",
		Long: `Fetches the nodes, pods and/or events a view needs for the selected cluster.
Without --start and --end the current hour is used. Times without an offset are
read in the configured timezone, e.g. 2024-01-01T10:00:00.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.view, "view", "", "View to fetch (default: configured default view)")
	cmd.Flags().StringVar(&opts.start, "start", "", "Window start")
	cmd.Flags().StringVar(&opts.end, "end", "", "Window end")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Shorthand for --output json")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Copy the fetched data as JSON to the clipboard")
	return cmd
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	if opts.json {
		outputFormat = "json"
	}

	application, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	svc := application.Services()
	view := svc.Views.View()
	if opts.view != "" {
		view = state.ParseView(opts.view)
		svc.Views.Set(view)
	}

	cluster := svc.State.SelectedCluster()
	if cluster == "" {
		return fmt.Errorf("%w: run 'cluster-inspection clusters' or 'cluster-inspection select <cluster>' first", state.ErrNoClusterSelected)
	}

	fetchErr := svc.State.FetchData(commandContext(cmd), view, opts.start, opts.end)

	snap := svc.State.Snapshot()
	result := map[string]interface{}{}
	for _, rt := range view.Resources() {
		result[string(rt)] = snap.Collections[rt]
	}

	if opts.copy {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := clipboard.WriteAll(string(data)); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		printer.Message("Copied %s data of %s to clipboard", view, cluster)
	}

	if format, _ := cli.ParseOutputFormat(outputFormat); format == cli.OutputFormatTable {
		for _, rt := range view.Resources() {
			fmt.Fprintln(cmd.OutOrStdout(), color.TitleStyle.Render(fmt.Sprintf("%s (%d)", rt, len(snap.Collections[rt]))))
			if err := printer.PrintRecords(string(rt), snap.Collections[rt]); err != nil {
				return err
			}
		}
	} else if err := printer.Print(result); err != nil {
		return err
	}

	if fetchErr != nil {
		return fmt.Errorf("%s", snap.FetchState.Error)
	}
	return nil
}
