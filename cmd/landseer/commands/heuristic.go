package commands

import (
	"github.com/spf13/cobra"
)

var heuristicCmd = &cobra.Command{
	Use:   "heuristic",
	Short: "Manage domain-extraction heuristics",
}

var heuristicUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Reassign expression domains under the current heuristics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		moved, err := s.ReassignDomains(cmd.Context())
		if err != nil {
			return err
		}

		logInfo("heuristic update: %d expressions moved", moved)
		if moved > 0 {
			markRan()
		}
		return nil
	},
}

func init() {
	heuristicCmd.AddCommand(heuristicUpdateCmd)
	rootCmd.AddCommand(heuristicCmd)
}
