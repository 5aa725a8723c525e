package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and validate Seedwright configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  Target:\n")
		fmt.Printf("    Host:           %s\n", cfg.Target.Host)
		fmt.Printf("    Port:           %d\n", cfg.Target.Port)
		fmt.Printf("    Database:       %s\n", cfg.Target.Database)
		fmt.Printf("    Schema:         %s\n", cfg.Target.Schema)
		fmt.Printf("    Username:       %s\n", cfg.Target.Username)
		fmt.Printf("    Password:       %s\n", maskSecret(cfg.Target.Password))
		fmt.Printf("    Max Conns:      %d\n", cfg.Target.MaxConnections)
		fmt.Println()
		fmt.Printf("  Seed:\n")
		fmt.Printf("    Mode:           %s\n", cfg.Seed.Mode)
		fmt.Printf("    On Failure:     %s\n", cfg.Seed.OnFailure)
		fmt.Printf("    User Strategy:  %s\n", cfg.Seed.UserStrategy)
		fmt.Printf("    Batch Size:     %d\n", cfg.Seed.BatchSize)
		fmt.Println()
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level:          %s\n", cfg.Logging.Level)
		fmt.Printf("    Directory:      %s\n", cfg.Logging.Directory)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		var errors []string

		if cfg.Target.Host == "" {
			errors = append(errors, "target.host is required")
		}
		if cfg.Target.Database == "" {
			errors = append(errors, "target.database is required")
		}
		if cfg.Target.Username == "" {
			errors = append(errors, "target.username is required")
		}
		switch cfg.Seed.Mode {
		case "strict", "permissive", "auto_fix":
		default:
			errors = append(errors, fmt.Sprintf("seed.mode %q is not one of strict, permissive, auto_fix", cfg.Seed.Mode))
		}
		switch cfg.Seed.OnFailure {
		case "fail_fast", "graceful_degradation", "best_effort":
		default:
			errors = append(errors, fmt.Sprintf("seed.on_failure %q is not one of fail_fast, graceful_degradation, best_effort", cfg.Seed.OnFailure))
		}

		if len(errors) > 0 {
			fmt.Println("Validation errors:")
			for _, e := range errors {
				fmt.Printf("  - %s\n", e)
			}
			return fmt.Errorf("%d validation error(s)", len(errors))
		}

		fmt.Println("Configuration is valid.")
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
