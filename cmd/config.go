package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xvierd/notetime/internal/config"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration",
	Annotations: map[string]string{skipServices: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, map[string]any{"path": path, "config": app.config})
		}

		c := app.config
		fmt.Fprintln(out, titleStyle.Render("Config: "+path))
		rows := [][2]string{
			{"tracking.vault", c.Tracking.Vault},
			{"tracking.idle_threshold", c.Tracking.IdleThreshold.String()},
			{"tracking.track_inactive_time", fmt.Sprint(c.Tracking.TrackInactiveTime)},
			{"tracking.input_debounce", c.Tracking.InputDebounce.String()},
			{"tracking.extensions", fmt.Sprint(c.Tracking.Extensions)},
			{"tracking.ignore", fmt.Sprint(c.Tracking.Ignore)},
			{"storage.data_dir", c.Storage.DataDir},
			{"storage.backend", c.Storage.Backend},
			{"storage.save_debounce", c.Storage.SaveDebounce.String()},
			{"storage.save_interval", c.Storage.SaveInterval.String()},
			{"storage.retention_days", fmt.Sprint(c.Storage.RetentionDays)},
			{"notifications.enabled", fmt.Sprint(c.Notifications.Enabled)},
			{"hostlink.port", fmt.Sprint(c.HostLink.Port)},
			{"sync.endpoint", c.Sync.Endpoint},
			{"dashboard.daily_goal", c.Dashboard.DailyGoal.String()},
			{"log.level", c.Log.Level},
		}
		for _, r := range rows {
			fmt.Fprintf(out, "  %-30s %s\n", r[0], r[1])
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	// config.Load creates a missing file, so init must not load first.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.SaveTo(path, config.DefaultConfig()); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
