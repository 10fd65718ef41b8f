package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskd/pkg/model"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var (
	projectDescription string
	projectColor       string
	projectClient      string
)

var projectAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a project",
	Args:  cobra.ExactArgs(1),
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

		project := model.Project{
			Name:        args[0],
			Description: projectDescription,
			Color:       projectColor,
			Client:      projectClient,
			UserID:      user.ID,
		}
		if err := a.store.AddProject(ctx, project); err != nil {
			return err
		}
		fmt.Printf("Added project %q\n", project.Name)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects",
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
		cancel, err := a.store.SubscribeToProjects(ctx, user.ID)
		if err != nil {
			return err
		}
		defer cancel()
		if err := waitForChange(ctx, changed); err != nil {
			return err
		}

		state := a.store.State()
		if state.Error != "" {
			return fmt.Errorf("%s", state.Error)
		}

		fmt.Printf("Projects (%d)\n", len(state.Projects))
		for _, p := range state.Projects {
			client := p.Client
			if client == "" {
				client = "-"
			}
			fmt.Printf("  %-36s  %-16s  %s\n", p.ID, client, p.Name)
		}
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a project (todos keep their reference)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.DeleteProject(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted project", args[0])
		return nil
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectDescription, "desc", "", "description")
	projectAddCmd.Flags().StringVar(&projectColor, "color", "", "color tag")
	projectAddCmd.Flags().StringVar(&projectClient, "client", "", "client name")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRmCmd)
}
