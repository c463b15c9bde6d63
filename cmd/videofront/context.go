package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"videofront/internal/app"
	"videofront/internal/config"
	"videofront/internal/logging"
)

type commandContext struct {
	configFlag string
	envFile    string
	jsonOutput bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// logger and appOpts replace the defaults of openApp in tests.
	logger  *slog.Logger
	appOpts []app.Option
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger writes to stderr so command output on stdout stays parseable.
func (c *commandContext) cliLogger(cfg *config.Config) (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logging.NewComponentLogger(logger, "cli"), nil
}

// withApp opens the application for the duration of fn.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(context.Context, *app.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.cliLogger(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfg, logger, c.appOpts...)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// drain runs tasks left in an in-process queue by the current command.
func drain(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	ran, err := a.DrainLocal(ctx)
	if ran > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Ran %d queued task(s)\n", ran)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
