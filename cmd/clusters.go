package cmd

import (
	"fmt"

	"cluster-inspection/internal/state"
	"cluster-inspection/pkg/logging"

	"github.com/spf13/cobra"
)

type clusterRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

func newClustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clusters",
		Short: "List available clusters",
		Long: `Fetches the cluster list from the API. When no cluster has been selected yet,
the first one is selected. Falls back to the cached list when the API is unreachable.`,
		Args: cobra.NoArgs,
		RunE: runClusters,
	}
}

func runClusters(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	s := application.Services().State
	if err := s.FetchClusters(commandContext(cmd)); err != nil {
		if len(s.Clusters()) == 0 {
			return err
		}
		logging.Warn("CLI", "Showing cached cluster list: %v", err)
	}

	return printer.Print(clusterList(s))
}

func clusterList(s *state.ClusterState) map[string]interface{} {
	selected := s.SelectedCluster()
	rows := []clusterRow{}
	for _, id := range s.Clusters() {
		rows = append(rows, clusterRow{ID: id, Name: s.ClusterName(id), Selected: id == selected})
	}
	return map[string]interface{}{
		"clusters": rows,
		"total":    len(rows),
	}
}

func newSelectCmd() *cobra.Command {
	var view string
	cmd := &cobra.Command{
		Use:   "select <cluster>",
		Short: "Select a cluster and fetch its data",
		Long: `Selects the cluster used by fetch and refresh and remembers it across runs.
The data of the given view is fetched for the current hour right away.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if view != "" {
				svc.Views.Set(state.ParseView(view))
			}
			if err := svc.State.SetSelectedCluster(commandContext(cmd), args[0]); err != nil {
				return fmt.Errorf("selected %s but fetching failed: %w", args[0], err)
			}

			printer.Message("Selected cluster %s", svc.State.ClusterName(args[0]))
			return printer.Print(counts(svc.State.Snapshot()))
		},
	}
	cmd.Flags().StringVar(&view, "view", "", "View whose data is fetched (home, nodes, pods, events, report, ...)")
	return cmd
}

func counts(snap state.Snapshot) map[string]interface{} {
	out := map[string]interface{}{"cluster": snap.SelectedCluster}
	for _, rt := range state.ResourceTypes {
		out[string(rt)] = len(snap.Collections[rt])
	}
	if snap.FetchState.Error != "" {
		out["error"] = snap.FetchState.Error
	}
	return out
}
