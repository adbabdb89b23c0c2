package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cluster-inspection",
		Long:  `All software has versions. This is cluster-inspection's.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cluster-inspection version %s\n", rootCmd.Version)
		},
	}
}
