package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var registerName string

var registerCmd = &cobra.Command{
	Use:   "register EMAIL",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		user, token, err := a.bridge.Register(ctx, args[0], password, registerName)
		if err != nil {
			return err
		}
		if err := saveToken(token); err != nil {
			return err
		}
		a.store.SetUser(user)

		fmt.Printf("Registered %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Log in with email and password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		user, token, err := a.bridge.Login(ctx, args[0], password)
		if err != nil {
			return err
		}
		if err := saveToken(token); err != nil {
			return err
		}
		a.store.SetUser(user)

		fmt.Printf("Logged in as %s (role %s)\n", user.Email, user.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the local session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := os.Remove(tokenPath()); err != nil && !os.IsNotExist(err) {
			return err
		}
		a.store.ClearUser()

		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.session()
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s, role %s)\n", user.Email, user.ID, user.Role)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
}

// readPassword prompts without echo when stdin is a terminal.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		data, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(data), nil
	}

	var password string
	if _, err := fmt.Fscanln(os.Stdin, &password); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}
