// Package main implements the taskctl CLI for working a task list from the
// terminal. It talks to NATS directly and reuses the same entity store the
// UI layers build on, so what it prints is exactly what a subscribed client
// would see.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskd/internal/config"
	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/internal/persist"
	"github.com/fyrsmithlabs/taskd/pkg/auth"
	"github.com/fyrsmithlabs/taskd/pkg/docstore"
	"github.com/fyrsmithlabs/taskd/pkg/model"
	"github.com/fyrsmithlabs/taskd/pkg/store"
)

var (
	configPath string
	version    = "dev"
)

// snapshotWait bounds how long list commands wait for the first snapshot.
const snapshotWait = 10 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "CLI for the taskd task tracker",
	Long: `taskctl works a shared task list from the terminal.

It connects to the same NATS-backed document store as every other client,
so todos and projects stay in sync live across sessions.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(todoCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(watchCmd)
}

// app bundles everything a command needs: the document store client, the
// entity store, and the auth bridge.
type app struct {
	cfg    *config.Config
	nc     *nats.Conn
	client *docstore.Client
	store  *store.Store
	bridge *auth.Bridge
	users  *docstore.Collection
	log    *logging.Logger
}

func (a *app) close() {
	a.nc.Close()
}

// newApp connects to NATS and wires the store and bridge.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	// CLI output belongs to the commands; keep the logger quiet.
	logCfg := cfg.Logging
	logCfg.Level = "error"
	logCfg.Format = "console"
	logCfg.Caller = false
	logger, err := logging.NewLogger(&logCfg, nil)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("taskctl"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	client, err := docstore.New(nc, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}

	todos, err := client.Collection(ctx, "todos")
	if err != nil {
		nc.Close()
		return nil, err
	}
	projects, err := client.Collection(ctx, "projects")
	if err != nil {
		nc.Close()
		return nil, err
	}
	users, err := client.Collection(ctx, "users")
	if err != nil {
		nc.Close()
		return nil, err
	}
	creds, err := client.Collection(ctx, "credentials")
	if err != nil {
		nc.Close()
		return nil, err
	}

	snapshotPath := cfg.Persist.Path
	if snapshotPath == "" {
		dir, err := config.EnsureConfigDir()
		if err != nil {
			nc.Close()
			return nil, err
		}
		snapshotPath = filepath.Join(dir, "snapshot.json")
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("auth not configured (set auth.token_secret): %w", err)
	}

	return &app{
		cfg:    cfg,
		nc:     nc,
		client: client,
		store:  store.New(todos, projects, persist.New(snapshotPath, logger), logger),
		bridge: auth.NewBridge(users, creds, tokens, logger),
		users:  users,
		log:    logger,
	}, nil
}

// session returns the signed-in user derived from the saved token.
func (a *app) session() (*model.User, error) {
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return nil, fmt.Errorf("not logged in (run taskctl login)")
	}

	tokens, err := auth.NewTokenIssuer(a.cfg.Auth.TokenSecret, a.cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	claims, err := tokens.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("session expired or invalid, log in again: %w", err)
	}

	return &model.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// waitForChange blocks until the store signals a state change, typically
// the first snapshot after a subscribe.
func waitForChange(ctx context.Context, changed <-chan struct{}) error {
	select {
	case <-changed:
		return nil
	case <-time.After(snapshotWait):
		return fmt.Errorf("timed out waiting for snapshot")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func tokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskd-token"
	}
	return filepath.Join(home, ".config", "taskd", "token")
}

func saveToken(token string) error {
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "token"), []byte(token), 0600)
}
