package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pinnerrors "github.com/maruel/pinn/internal/errors"
	"github.com/maruel/pinn/internal/storage"
)

var folderDeleteMode string

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage the folder registry",
}

var folderLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every folder referenced by a note or registered explicitly",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range app.notes.AllFolders(cmd.Context()) {
			fmt.Println(name)
		}
		return nil
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a folder on every note that uses it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := app.notes.RenameFolder(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		snapshot("Rename folder " + args[0])
		fmt.Printf("Renamed on %d note(s)\n", count)
		return nil
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a folder, deleting or unfiling its notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := storage.FolderDeleteMode(folderDeleteMode)
		switch mode {
		case storage.DeleteNotes, storage.MoveToUnfiled:
		default:
			return pinnerrors.Newf(pinnerrors.ErrValidation,
				"Unknown mode %q; use %q or %q.", folderDeleteMode, storage.DeleteNotes, storage.MoveToUnfiled)
		}
		count, err := app.notes.DeleteFolder(cmd.Context(), args[0], mode)
		if err != nil {
			return err
		}
		snapshot("Delete folder " + args[0])
		fmt.Printf("Affected %d note(s)\n", count)
		return nil
	},
}

func init() {
	folderRmCmd.Flags().StringVar(&folderDeleteMode, "mode", string(storage.MoveToUnfiled),
		"what to do with the folder's notes: delete-notes or move-to-unfiled")
	folderCmd.AddCommand(folderLsCmd, folderRenameCmd, folderRmCmd)
	rootCmd.AddCommand(folderCmd)
}
