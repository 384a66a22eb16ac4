package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/legallex/djenwatch/internal/model"
	"github.com/legallex/djenwatch/internal/results"
)

var resultsJSON bool

// resultsCmd groups result-artifact subcommands
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored daily result artifacts",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dates with a stored result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := results.NewStore(cfg.Storage.ResultsDir, cfg.Storage.CacheTTL)
		dates, err := store.ListDates()
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			fmt.Println("No results stored yet")
			return nil
		}
		for _, d := range dates {
			fmt.Println(d)
		}
		return nil
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Show the result for a date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		date, err := model.ParseDate(args[0])
		if err != nil {
			return err
		}

		store := results.NewStore(cfg.Storage.ResultsDir, cfg.Storage.CacheTTL)
		result, err := store.Read(date)
		if err != nil {
			return err
		}

		if resultsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		printSummary(&result.Execution)
		for _, pub := range result.Publications {
			fmt.Printf("%s  %-8s %-20s %s\n",
				pub.AvailableOn, pub.TribunalCode, pub.CommunicationType, pub.MaskedProcessNumber)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)

	resultsShowCmd.Flags().BoolVar(&resultsJSON, "json", false, "print the raw artifact as JSON")
}
