package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/maruel/pinn/internal/cloudsync"
	"github.com/maruel/pinn/internal/models"
)

var (
	syncNoteIDs  []string
	syncFlowIDs  []string
	cloudAPIKey  string
	cloudProject string
	cloudEnabled bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push and pull collections against the cloud store",
}

func syncOptions() *cloudsync.Options {
	opts := &cloudsync.Options{
		Progress: func(percent int, message string) {
			fmt.Fprintf(os.Stderr, "%3d%% %s\n", percent, message)
		},
	}
	if len(syncNoteIDs) > 0 {
		opts.NoteIDs = syncNoteIDs
	}
	if len(syncFlowIDs) > 0 {
		opts.FlowIDs = syncFlowIDs
	}
	return opts
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Merge local collections with the remote record and upload the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.engine.Upload(cmd.Context(), syncOptions())
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d file(s) to record %s (sync %s)\n", res.FilesCount, res.Identifier, res.SyncID)
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download remote collections and apply them to the local backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		data, err := app.engine.Download(ctx, syncOptions())
		if err != nil {
			return err
		}
		if len(data) == 0 {
			fmt.Println("Nothing to pull")
			return nil
		}
		if err := app.engine.Apply(ctx, data); err != nil {
			return err
		}
		app.notes.Invalidate()
		snapshot("Apply cloud sync")
		names := make([]string, 0, len(data))
		for name := range data {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println("Applied", name)
		}
		return nil
	},
}

var syncCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the cloud settings reach a live store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, ok := app.store.ReadCloudConfig(ctx)
		if !ok {
			cfg = models.CloudConfig{}
		}
		if err := app.engine.ValidateConfig(ctx, cfg); err != nil {
			return err
		}
		fmt.Println("Cloud store reachable")
		return nil
	},
}

var syncConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Set the cloud store credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, _ := app.store.ReadCloudConfig(ctx)
		if cmd.Flags().Changed("api-key") {
			cfg.APIKey = cloudAPIKey
		}
		if cmd.Flags().Changed("project") {
			cfg.ProjectID = cloudProject
		}
		if cmd.Flags().Changed("enabled") {
			cfg.Enabled = cloudEnabled
		}
		return app.store.WriteCloudConfig(ctx, cfg)
	},
}

func init() {
	for _, c := range []*cobra.Command{syncPushCmd, syncPullCmd} {
		c.Flags().StringSliceVar(&syncNoteIDs, "note", nil, "only sync these note ids")
		c.Flags().StringSliceVar(&syncFlowIDs, "flow", nil, "only sync these flow ids")
	}
	syncConfigCmd.Flags().StringVar(&cloudAPIKey, "api-key", "", "store API key")
	syncConfigCmd.Flags().StringVar(&cloudProject, "project", "", "store project id")
	syncConfigCmd.Flags().BoolVar(&cloudEnabled, "enabled", false, "enable background sync")
	syncCmd.AddCommand(syncPushCmd, syncPullCmd, syncCheckCmd, syncConfigCmd)
	rootCmd.AddCommand(syncCmd)
}
