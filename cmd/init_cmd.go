package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedwright/seedwright/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long:  `Walk through prompts to create a Seedwright configuration file at ~/.seedwright/seedwright.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Seedwright Configuration Setup")
		fmt.Println("==============================")
		fmt.Println()

		fmt.Println("Target Database")
		fmt.Println("---------------")
		host := prompt(reader, "Host", "localhost")
		portStr := prompt(reader, "Port", "5432")
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid port: %s", portStr)
		}
		database := prompt(reader, "Database name", "")
		schemaName := prompt(reader, "Schema", "public")
		username := prompt(reader, "Username", "")
		password := prompt(reader, "Password (or ${ENV:VAR} reference)", "")
		fmt.Println()

		fmt.Println("Seeding Defaults")
		fmt.Println("----------------")
		mode := prompt(reader, "Constraint mode (strict/permissive/auto_fix)", "auto_fix")
		onFailure := prompt(reader, "Failure policy (fail_fast/graceful_degradation/best_effort)", "graceful_degradation")
		fmt.Println()

		cfg := &config.Config{
			Version: config.CurrentVersion,
			Target: config.TargetConfig{
				Host:     host,
				Port:     port,
				Database: database,
				Schema:   schemaName,
				Username: username,
				Password: password,
			},
			Seed: config.SeedConfig{
				Mode:      mode,
				OnFailure: onFailure,
			},
		}

		cfgPath := config.ExpandHome(config.DefaultPath)
		if cfgFile != "" {
			cfgPath = cfgFile
		}

		if err := cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Printf("Config written to %s\n", cfgPath)
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  seedwright introspect   — Capture the schema snapshot")
		fmt.Println("  seedwright discover     — Discover constraints and business rules")
		fmt.Println("  seedwright seed         — Generate and run a seeding workflow")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("  %s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
