package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maruel/pinn/internal/cloudsync"
	pinnerrors "github.com/maruel/pinn/internal/errors"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the notes directory and push changed collections automatically",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		h, err := app.dirs.EnsureAccess(ctx)
		if err != nil {
			return err
		}
		if h == nil {
			return pinnerrors.NotConfigured()
		}
		auto := cloudsync.NewAutoSync(app.engine, h.Path)
		if err := auto.Start(ctx); err != nil {
			return err
		}
		defer auto.Close()
		fmt.Println("Watching", h.Path)
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
