package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/obligations/internal/infrastructure/config"
	"github.com/erp/obligations/internal/infrastructure/logger"
)

// cli carries state shared by every subcommand
type cli struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "obligations",
		Short: "Schedule and reconcile payable and receivable obligations",
		Long: `obligations expands negotiated commercial terms into dated obligations,
reconciles settlements against them and absorbs any shortfall or surplus
with a chosen residual strategy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = logger.Sync(c.log)
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a TOML config file (default: ./config.toml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		c.generateCmd(),
		c.reconcileCmd(),
		c.markAwaitingCmd(),
		c.cancelCmd(),
		c.cancelGroupCmd(),
		c.listCmd(),
		c.showCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) init() error {
	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFile(c.configPath)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.logLevel != "" {
		c.cfg.Log.Level = c.logLevel
	}

	c.log, err = logger.New(&logger.Config{
		Level:      c.cfg.Log.Level,
		Format:     c.cfg.Log.Format,
		Output:     c.cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// withApp runs fn against a freshly wired application and shuts it down
// afterwards
func (c *cli) withApp(ctx context.Context, fn func(app *application) error) error {
	app, err := newApplication(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			c.log.Warn("Error during shutdown", zap.Error(err))
		}
	}()
	return fn(app)
}

// printJSON writes v indented to w
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
