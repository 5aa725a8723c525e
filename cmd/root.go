package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/config"
	"github.com/seedwright/seedwright/internal/engine"
	"github.com/seedwright/seedwright/internal/logging"
	"github.com/seedwright/seedwright/internal/selection"
	"github.com/seedwright/seedwright/internal/state"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "seedwright",
	Short: "Seedwright — constraint-aware test data seeding for Postgres",
	Long: `Seedwright introspects a Postgres-family database, discovers its business
rules from constraints and triggers, and generates and executes seeding
workflows that respect them.

A typical session:

  seedwright init         Create the config file
  seedwright introspect   Capture the schema snapshot
  seedwright discover     Discover constraints and business rules
  seedwright plan         Generate a seeding workflow
  seedwright seed         Execute it against the database`,
}

func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.seedwright/seedwright.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// newEngine loads the config, sets up logging, and returns an unconnected
// engine.
func newEngine() (*engine.Engine, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.Setup(level, cfg.Logging.Directory, cfg.Logging.RetentionDays)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	return engine.New(cfg, logger), nil
}

// connectEngine builds an engine and opens its connection pool. The caller
// must Close it.
func connectEngine(ctx context.Context) (*engine.Engine, error) {
	e, err := newEngine()
	if err != nil {
		return nil, err
	}
	fmt.Printf("Connecting to %s:%d/%s...\n",
		e.Config.Target.Host, e.Config.Target.Port, e.Config.Target.Database)
	if err := e.Connect(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// expandTables resolves glob patterns in a --tables flag against the live
// schema. Plain names pass through without triggering introspection.
func expandTables(ctx context.Context, e *engine.Engine, patterns []string) ([]string, error) {
	glob := false
	for _, p := range patterns {
		if strings.Contains(p, "*") {
			glob = true
			break
		}
	}
	if !glob {
		return patterns, nil
	}

	result := e.Introspection()
	if result == nil {
		var err error
		result, err = e.Introspect(ctx)
		if err != nil {
			return nil, err
		}
	}
	return selection.Expand(result.Snapshot, patterns), nil
}

// saveState applies a mutation to the pipeline state file. State is a
// convenience layer, so failures warn rather than abort the command.
func saveState(mutate func(*state.State)) {
	st, err := state.Load("")
	if err != nil {
		fmt.Printf("Warning: could not read state: %v\n", err)
		return
	}
	mutate(st)
	if err := st.Save(""); err != nil {
		fmt.Printf("Warning: could not save state: %v\n", err)
	}
}
