package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskd/pkg/views"
)

var watchProject string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live todo snapshots until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.session()
		if err != nil {
			return err
		}

		changed := a.store.Watch()
		cancel, err := a.store.SubscribeToTodos(ctx, user.ID, *user)
		if err != nil {
			return err
		}
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		var memo views.Memo
		for {
			select {
			case <-sigCh:
				return nil
			case <-ctx.Done():
				return nil
			case <-changed:
				state := a.store.State()
				if state.Error != "" {
					fmt.Fprintln(os.Stderr, "stream error:", state.Error)
					continue
				}
				active, resolved := memo.Derive(state.Todos, watchProject)
				fmt.Print("\033[2J\033[H") // clear screen
				printTodos("Active", active)
				printTodos("Resolved", resolved)
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchProject, "project", "", "filter by project id")
}
