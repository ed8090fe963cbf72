package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dirReuse bool

var dirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Manage the notes directory",
}

var dirUseCmd = &cobra.Command{
	Use:   "use [path]",
	Short: "Select a notes directory, creating it if needed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reuse := dirReuse
		if len(args) == 1 {
			// An explicit path always switches, even when a directory is
			// already configured and valid.
			app.picker.preset = args[0]
			reuse = false
		}
		h, err := app.dirs.RequestAccess(cmd.Context(), app.cfg.DefaultFolderName, reuse)
		if err != nil {
			return err
		}
		if h == nil {
			fmt.Println("Cancelled")
			return nil
		}
		fmt.Println("Using", h.Path)
		return nil
	},
}

var dirStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the directory state and whether it is writable right now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if h, err := app.dirs.EnsureAccess(ctx); err == nil && h != nil {
			fmt.Printf("%s: %s (writable: %v)\n", app.dirs.State(), h.Path, app.dirs.HasValidAccess(ctx))
			return nil
		}
		fmt.Println(app.dirs.State())
		if app.store.UsingDirectory(ctx) {
			fmt.Println("Backend: directory files")
		} else {
			fmt.Println("Backend: key-value fallback")
		}
		return nil
	},
}

var dirRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Re-validate the stored directory, prompting for a new one if it is gone",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := app.dirs.RestoreWithGesture(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Not restored")
			return nil
		}
		fmt.Println("Using", app.dirs.Current().Path)
		return nil
	},
}

var dirForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Forget the configured directory and fall back to the key-value store",
	RunE: func(cmd *cobra.Command, args []string) error {
		app.dirs.Clear()
		return nil
	},
}

func init() {
	dirUseCmd.Flags().BoolVar(&dirReuse, "reuse", true, "keep the current directory when it is still valid")
	dirCmd.AddCommand(dirUseCmd, dirStatusCmd, dirRestoreCmd, dirForgetCmd)
	rootCmd.AddCommand(dirCmd)
}
