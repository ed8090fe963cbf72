package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy key-value store collections into the notes directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.store.MigrateFromKV(cmd.Context())
		if err != nil {
			return err
		}
		app.notes.Invalidate()
		snapshot("Migrate from key-value store")
		fmt.Printf("Migrated %d note(s) and %d flow(s)\n", res.Notes, res.Flows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
