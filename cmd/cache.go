package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the local cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		Args:  cobra.NoArgs,
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

			stats, err := application.Services().Cache.Stats()
			if err != nil {
				return fmt.Errorf("failed to read cache: %w", err)
			}
			return printer.Print(map[string]interface{}{
				"entries":    stats.Entries,
				"raw":        stats.Raw,
				"totalBytes": stats.TotalBytes,
				"maxBytes":   stats.MaxBytes,
				"ttl":        stats.TTL.String(),
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [key]",
		Short: "Clear one key, or everything except the selected cluster",
		Args:  cobra.MaximumNArgs(1),
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
			if len(args) == 0 {
				if err := svc.State.ClearCache(); err != nil {
					return err
				}
				printer.Message("Cache cleared")
				return nil
			}
			if err := svc.Cache.Clear(args[0]); err != nil {
				return fmt.Errorf("failed to clear %s: %w", args[0], err)
			}
			printer.Message("Cleared '%s'", args[0])
			return nil
		},
	})

	return cmd
}
