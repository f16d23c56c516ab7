package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/debemdeboas/war-room/internal/client"
	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/logger"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/render"
	"github.com/debemdeboas/war-room/internal/store"
	"github.com/debemdeboas/war-room/internal/util/compression"
	"github.com/spf13/cobra"
)

const (
	sessionFileName  = "session.json"
	snapshotFileName = "posts.cache"
)

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	baseURL    string
	stateDir   string
	logLevel   string

	cfg       *config.Config
	client    *client.Client
	session   *client.Session
	store     *store.Store
	snapshots *store.FileSnapshotStore
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "warroom",
		Short:         "Admin console for the War Room blog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.ConfigPath(), "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "API base URL (overrides client.base_url)")
	cmd.PersistentFlags().StringVar(&a.stateDir, "state-dir", "", "Directory for the session and post cache (overrides client.state_dir)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error, disabled)")

	cmd.AddCommand(
		a.loginCmd(),
		a.signupCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.postsCmd(),
		a.categoriesCmd(),
		a.featuredCmd(),
		a.cacheCmd(),
		a.watchCmd(),
		a.exportCmd(),
	)
	return cmd
}

func (a *app) setup() error {
	log := logger.New(a.logLevel, logger.WithComponent("warroom"))
	config.SetLogger(log)
	client.SetLogger(log)
	store.SetLogger(log)
	render.SetLogger(log)

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.Client.BaseURL = a.baseURL
	}
	a.cfg = cfg

	dir, err := a.resolveStateDir()
	if err != nil {
		return err
	}
	comp, err := compression.ByName(cfg.Client.Compression)
	if err != nil {
		return err
	}

	a.client = client.New(cfg.Client.BaseURL, cfg.Client.Timeout)
	a.session, err = client.NewSession(a.client, filepath.Join(dir, sessionFileName))
	if err != nil {
		return err
	}
	a.snapshots = store.NewFileSnapshotStore(filepath.Join(dir, snapshotFileName), comp)
	a.store = store.New(a.client, a.session,
		store.WithTTL(cfg.Cache.PostsTTL),
		store.WithFeaturedLimit(cfg.Cache.FeaturedLimit),
		store.WithSnapshots(a.snapshots),
	)

	// What an admin sees differs from the public listing, so identity changes drop the cache.
	a.session.OnAuthStateChange(func(ev client.AuthEvent, u *model.User) {
		a.store.SetCurrentUser(u)
		if ev != client.TokenRefreshed {
			a.store.InvalidateCache()
		}
	})
	a.store.SetCurrentUser(a.session.User())
	return nil
}

func (a *app) resolveStateDir() (string, error) {
	if a.stateDir != "" {
		return a.stateDir, nil
	}
	if a.cfg.Client.StateDir != "" {
		return a.cfg.Client.StateDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no state directory configured: %w", err)
	}
	return filepath.Join(base, "warroom"), nil
}
