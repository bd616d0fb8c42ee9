package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xvierd/notetime/internal/adapters/remote"
	"github.com/xvierd/notetime/internal/config"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push tracker data to a remote endpoint",
}

var syncLoginCmd = &cobra.Command{
	Use:         "login",
	Short:       "Authorize notetime with the sync provider",
	Annotations: map[string]string{skipServices: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := setupSignalHandler(cmd.Context())
		defer stop()

		cfg := remoteConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		_, err := remote.Login(ctx, cfg, func(authURL string) error {
			_, err := fmt.Fprintf(cmd.ErrOrStderr(), "Open this URL to authorize notetime:\n\n  %s\n\n", authURL)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload all entries and the aggregate snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := remote.NewClient(ctx, remoteConfig(), app.logger)
		if err != nil {
			return err
		}
		payload, err := app.tracking.SyncPayload(ctx)
		if err != nil {
			return err
		}
		if err := client.Push(ctx, payload); err != nil {
			return err
		}
		app.logger.Info("sync push complete", "entries", len(payload.Entries))
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d entries.\n", len(payload.Entries))
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncLoginCmd)
	syncCmd.AddCommand(syncPushCmd)
	rootCmd.AddCommand(syncCmd)
}

// remoteConfig maps the sync settings onto the remote adapter.
func remoteConfig() remote.Config {
	s := app.config.Sync
	return remote.Config{
		ClientID:     s.ClientID,
		AuthURL:      s.AuthURL,
		TokenURL:     s.TokenURL,
		Endpoint:     s.Endpoint,
		RedirectPort: s.RedirectPort,
		Scopes:       []string{"sync"},
		TokenPath:    config.GetTokenPath(app.config),
	}
}
