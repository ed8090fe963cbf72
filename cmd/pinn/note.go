package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	pinnerrors "github.com/maruel/pinn/internal/errors"
	"github.com/maruel/pinn/internal/models"
)

var (
	noteID      string
	noteTitle   string
	noteContent string
	noteFolder  string
	listFolder  string
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Create, list and edit notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a note, or update one when --id matches an existing note",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		n := models.Note{
			ID:      noteID,
			Title:   noteTitle,
			Content: noteContent,
			Folder:  noteFolder,
		}
		saved, err := app.notes.SaveNote(ctx, n)
		if err != nil {
			return err
		}
		snapshot("Save note " + saved.ID)
		fmt.Println(saved.ID)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		notes := app.notes.List(cmd.Context())
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tFOLDER\tUPDATED")
		for _, n := range notes {
			if listFolder != "" && n.Folder != listFolder {
				continue
			}
			folder := n.Folder
			if folder == "" {
				folder = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Title, folder, n.UpdatedAt)
		}
		return w.Flush()
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, ok := app.notes.Get(cmd.Context(), args[0])
		if !ok {
			return pinnerrors.Newf(pinnerrors.ErrValidation, "No note with id %q.", args[0])
		}
		fmt.Println(n.Title)
		fmt.Println(n.Content)
		return nil
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.notes.DeleteNote(cmd.Context(), args[0]); err != nil {
			return err
		}
		snapshot("Delete note " + args[0])
		return nil
	},
}

var noteMoveCmd = &cobra.Command{
	Use:   "move <id> <folder>",
	Short: "Move a note to a folder; an empty folder name unfiles it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.notes.SetNoteFolder(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		snapshot("Move note " + args[0])
		return nil
	},
}

func init() {
	noteAddCmd.Flags().StringVar(&noteID, "id", "", "note id (new notes get one generated)")
	noteAddCmd.Flags().StringVar(&noteTitle, "title", "", "note title")
	noteAddCmd.Flags().StringVar(&noteContent, "content", "", "note content")
	noteAddCmd.Flags().StringVar(&noteFolder, "folder", "", "folder name")
	noteListCmd.Flags().StringVar(&listFolder, "folder", "", "only notes in this folder")
	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteShowCmd, noteRmCmd, noteMoveCmd)
	rootCmd.AddCommand(noteCmd)
}
