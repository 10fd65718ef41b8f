package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskd/pkg/model"
	"github.com/fyrsmithlabs/taskd/pkg/views"
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Manage todos",
}

var (
	todoDescription string
	todoPriority    string
	todoProject     string
	todoAssignees   []string
	todoEstimate    string
	listProject     string
	listAll         bool
)

var todoAddCmd = &cobra.Command{
	Use:   "add TITLE",
	Short: "Add a todo",
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

		todo := model.Todo{
			Title:       args[0],
			Description: todoDescription,
			Priority:    model.Priority(todoPriority),
			Status:      model.StatusPending,
			Users:       todoAssignees,
			ProjectID:   todoProject,
			UserID:      user.ID,
		}
		if len(todo.Users) == 0 {
			todo.Users = []string{user.ID}
		}
		if todoEstimate != "" {
			estimate, err := time.Parse("2006-01-02", todoEstimate)
			if err != nil {
				return fmt.Errorf("invalid --estimate (want YYYY-MM-DD): %w", err)
			}
			todo.EstimatedDate = &estimate
		}

		if err := a.store.AddTodo(ctx, todo); err != nil {
			return err
		}
		fmt.Printf("Added %q\n", todo.Title)
		return nil
	},
}

var todoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible todos",
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
		if err := waitForChange(ctx, changed); err != nil {
			return err
		}

		state := a.store.State()
		if state.Error != "" {
			return fmt.Errorf("%s", state.Error)
		}

		active, resolved := views.PartitionByStatus(views.FilterByProject(state.Todos, listProject))
		printTodos("Active", active)
		if listAll {
			printTodos("Resolved", resolved)
		}
		return nil
	},
}

var todoDoneCmd = &cobra.Command{
	Use:   "done ID",
	Short: "Mark a todo completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		status := model.StatusCompleted
		if err := a.store.UpdateTodo(ctx, args[0], model.TodoPatch{Status: &status}); err != nil {
			return err
		}
		fmt.Println("Completed", args[0])
		return nil
	},
}

var todoCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		status := model.StatusCancelled
		if err := a.store.UpdateTodo(ctx, args[0], model.TodoPatch{Status: &status}); err != nil {
			return err
		}
		fmt.Println("Cancelled", args[0])
		return nil
	},
}

var todoRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.DeleteTodo(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted", args[0])
		return nil
	},
}

var todoPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every todo you own",
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
		if err := a.store.DeleteAllTodos(ctx, user.ID); err != nil {
			return err
		}
		fmt.Println("Purged all owned todos")
		return nil
	},
}

func init() {
	todoAddCmd.Flags().StringVar(&todoDescription, "desc", "", "description")
	todoAddCmd.Flags().StringVar(&todoPriority, "priority", string(model.PriorityNormal), "priority: critical, normal, minor")
	todoAddCmd.Flags().StringVar(&todoProject, "project", "", "project id")
	todoAddCmd.Flags().StringSliceVar(&todoAssignees, "assign", nil, "assignee user ids (defaults to yourself)")
	todoAddCmd.Flags().StringVar(&todoEstimate, "estimate", "", "estimated date (YYYY-MM-DD)")
	todoListCmd.Flags().StringVar(&listProject, "project", "", "filter by project id")
	todoListCmd.Flags().BoolVar(&listAll, "all", false, "include resolved todos")

	todoCmd.AddCommand(todoAddCmd)
	todoCmd.AddCommand(todoListCmd)
	todoCmd.AddCommand(todoDoneCmd)
	todoCmd.AddCommand(todoCancelCmd)
	todoCmd.AddCommand(todoRmCmd)
	todoCmd.AddCommand(todoPurgeCmd)
}

func printTodos(header string, todos []model.Todo) {
	fmt.Printf("%s (%d)\n", header, len(todos))
	for _, t := range todos {
		project := t.ProjectID
		if project == "" {
			project = "-"
		}
		fmt.Printf("  %-36s  %-10s  %-12s  %-8s  %s\n",
			t.ID, t.Priority, t.Status, project, t.Title)
	}
}
