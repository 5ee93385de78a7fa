package commands

import (
	"github.com/spf13/cobra"

	"github.com/landseer/landseer/internal/archive"
	"github.com/landseer/landseer/internal/harvest"
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage discovered domains",
}

var domainCrawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Harvest metadata for pending domains",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		httpFilter, _ := cmd.Flags().GetString("http")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		var arc *archive.Client
		if cfg.Archive {
			arc = archive.NewClient("", cfg.DefaultTimeout)
		}

		h := harvest.New(s, arc, cfg.UserAgent, cfg.DefaultTimeout, cfg.ParallelConnections)
		stats, err := h.Run(cmd.Context(), harvest.Options{
			Limit:      limit,
			HTTPStatus: httpFilter,
		})
		if err != nil {
			return err
		}

		logInfo("domain crawl: %d attempted, %d harvested, %d errors",
			stats.Attempted, stats.Harvested, stats.Errors())
		if stats.Attempted > 0 {
			markRan()
		}
		return nil
	},
}

func init() {
	domainCrawlCmd.Flags().Int("limit", 0, "cap on domains attempted")
	domainCrawlCmd.Flags().String("http", "", "re-harvest domains with this HTTP status")

	domainCmd.AddCommand(domainCrawlCmd)
	rootCmd.AddCommand(domainCmd)
}
