package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/travelo/travelo-cli/internal/backend"
	"github.com/travelo/travelo-cli/internal/config"
	"github.com/travelo/travelo-cli/internal/gateway"
	"github.com/travelo/travelo-cli/internal/logging"
	"github.com/travelo/travelo-cli/internal/notify"
	"github.com/travelo/travelo-cli/internal/session"
	"github.com/travelo/travelo-cli/internal/tokenstore"
)

// appContext bundles the wired client components for one invocation
type appContext struct {
	cfg      *config.Config
	api      *backend.Client
	session  *session.Manager
	gateway  *gateway.Gateway
	notifier notify.Notifier
}

// buildApp wires config -> logging -> store -> session -> gateway.
// The session manager rehydrates any persisted login during construction.
func buildApp(c *cli.Context) (*appContext, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level)

	api := backend.NewClient(cfg.API.BaseURL, cfg.Timeout())
	store := tokenstore.NewFileStore(cfg.Session.StateFile)
	notifier := notify.NewConsole()
	sess := session.NewManager(api, store, notifier)
	gw := gateway.New(api, sess, cfg.API.RateLimit)

	return &appContext{
		cfg:      cfg,
		api:      api,
		session:  sess,
		gateway:  gw,
		notifier: notifier,
	}, nil
}
