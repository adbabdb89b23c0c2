package cmd

import (
	"fmt"

	"cluster-inspection/internal/refresh"
	"cluster-inspection/internal/remote"
	"cluster-inspection/internal/state"

	"github.com/spf13/cobra"
)

func newRefreshCmd() *cobra.Command {
	var date, hour string
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh nodes, pods and events for one hour",
		Long: `Refreshes all three collections of the selected cluster for one hour, by
default the current one. --force bypasses the server cache by using the report routes.`,
		Args: cobra.NoArgs,
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
			if svc.State.SelectedCluster() == "" {
				return fmt.Errorf("%w: run 'cluster-inspection select <cluster>' first", state.ErrNoClusterSelected)
			}

			ctrl := svc.Refresh
			if date != "" {
				if err := ctrl.SetDate(date); err != nil {
					return err
				}
			}
			if hour != "" {
				h, err := refresh.ParseHour(hour)
				if err != nil {
					return err
				}
				if err := ctrl.SetHour(h); err != nil {
					return err
				}
			}

			if err := ctrl.RefreshAll(commandContext(cmd), force); err != nil {
				return fmt.Errorf("%s", ctrl.Err())
			}

			w := ctrl.Window()
			out := counts(svc.State.Snapshot())
			out["start"] = remote.FormatTime(w.Start)
			out["end"] = remote.FormatTime(w.End)
			return printer.Print(out)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&hour, "hour", "", "Hour as 0-23 or HH:00 (default: current hour)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the server cache")
	return cmd
}
