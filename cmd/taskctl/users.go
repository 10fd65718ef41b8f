package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskd/pkg/model"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List assignable users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.session(); err != nil {
			return err
		}

		docs, err := a.users.Find(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		available := make([]model.User, 0, len(docs))
		for _, doc := range docs {
			var user model.User
			if err := doc.Decode(&user); err != nil {
				return fmt.Errorf("decode user: %w", err)
			}
			available = append(available, user)
		}
		a.store.SetAvailableUsers(available)

		for _, user := range a.store.State().AvailableUsers {
			name := user.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("  %-36s  %-6s  %-24s  %s\n", user.ID, user.Role, user.Email, name)
		}
		return nil
	},
}
