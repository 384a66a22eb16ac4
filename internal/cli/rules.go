package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/legallex/djenwatch/internal/rules"
)

// rulesCmd groups rule-file subcommands
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate the rule file",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := rules.NewStore(cfg.Storage.RulesFile)
		ruleSet, err := store.Load()
		if err != nil {
			return err
		}
		if len(ruleSet) == 0 {
			fmt.Printf("No rules configured (%s)\n", store.Path())
			return nil
		}

		for _, r := range ruleSet {
			state := "enabled"
			if !r.Enabled {
				state = "disabled"
			}
			fmt.Printf("%-8s %-9s %s\n", r.Kind, state, r.Name)
			criteria, err := yaml.Marshal(r.Criteria)
			if err != nil {
				return fmt.Errorf("render criteria: %w", err)
			}
			fmt.Printf("  %s", indented(string(criteria)))
		}
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the rule file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := rules.NewStore(cfg.Storage.RulesFile)
		ruleSet, err := store.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			return err
		}
		fmt.Printf("✓ %d rules valid (%s)\n", len(ruleSet), store.Path())
		return nil
	},
}

func indented(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n  ") + "\n"
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
}
