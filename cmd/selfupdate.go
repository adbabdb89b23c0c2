package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"cluster-inspection/internal/color"
	"cluster-inspection/internal/config"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update cluster-inspection to the latest release",
		Long: `Checks for the latest release of cluster-inspection in the configured GitHub
repository (update.repository) and replaces the running binary with it when a newer
version is available.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	current := strings.TrimPrefix(rootCmd.Version, "v")
	if current == "" || current == "dev" {
		return fmt.Errorf("cannot self-update a development version, install a release build instead")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	u := &updater{
		repository: cfg.Update.Repository,
		executable: selfupdate.ExecutablePath,
		out:        cmd.OutOrStdout(),
	}
	return u.run(commandContext(cmd), current)
}

// updater replaces the running binary with the newest release of a repository.
type updater struct {
	repository string
	source     selfupdate.Source // nil means GitHub
	executable func() (string, error)
	out        io.Writer
}

func (u *updater) run(ctx context.Context, current string) error {
	if u.repository == "" {
		return fmt.Errorf("no release repository configured, set update.repository or %s", config.EnvUpdateRepo)
	}

	up, err := selfupdate.NewUpdater(selfupdate.Config{Source: u.source})
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	latest, found, err := up.DetectLatest(ctx, selfupdate.ParseSlug(u.repository))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found in %s", runtime.GOOS, runtime.GOARCH, u.repository)
	}

	if latest.LessOrEqual(current) {
		fmt.Fprintln(u.out, color.SuccessStyle.Render(fmt.Sprintf("Current version (%s) is the latest", current)))
		return nil
	}

	exe, err := u.executable()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := up.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	fmt.Fprintln(u.out, color.SuccessStyle.Render(fmt.Sprintf("Successfully updated to version %s", latest.Version())))
	return nil
}
