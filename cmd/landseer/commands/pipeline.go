package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/landseer/landseer/internal/archive"
	"github.com/landseer/landseer/internal/consolidate"
	"github.com/landseer/landseer/internal/crawler"
	"github.com/landseer/landseer/internal/extract"
	"github.com/landseer/landseer/internal/fetch"
	"github.com/landseer/landseer/internal/gate"
	"github.com/landseer/landseer/internal/media"
	"github.com/landseer/landseer/internal/readable"
	"github.com/landseer/landseer/internal/serp"
	"github.com/landseer/landseer/internal/store"
)

var landCrawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl a land's pending expressions breadth-first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
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

		ctx := cmd.Context()
		land, err := s.GetLand(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			logError("land %q not found", name)
			return nil
		}
		if err != nil {
			return err
		}

		lex, err := landLexicon(ctx, s, land)
		if err != nil {
			return err
		}
		g, err := gate.New(cfg.LLM)
		if err != nil {
			return err
		}

		var arc *archive.Client
		if cfg.Archive {
			arc = archive.NewClient("", cfg.DefaultTimeout)
		}
		pipeline := extract.NewPipeline(fetch.NewClient(cfg.UserAgent, cfg.DefaultTimeout), arc)

		var dynamic crawler.DynamicCollector
		if cfg.DynamicMedia.Enabled {
			browser := media.NewBrowser(cfg.UserAgent, cfg.DynamicMedia.Timeout)
			defer browser.Close()
			dynamic = browser
		}

		c := crawler.New(s, pipeline, lex, g, dynamic, cfg.ParallelConnections)
		if cfg.Archive {
			blobDir := landBlobDir(cfg, land.ID)
			if err := os.MkdirAll(blobDir, 0o755); err == nil {
				c.ArchiveRawTo(blobDir)
			}
		}

		stats, err := c.Crawl(ctx, land, crawler.Options{
			Limit:      limit,
			HTTPStatus: httpFilter,
			Depth:      depthFlag(cmd),
		})
		if err != nil {
			return err
		}

		logInfo("crawl: %d attempted, %d processed, %d errors",
			stats.Attempted, stats.Processed, stats.Errors())
		if stats.Attempted > 0 {
			markRan()
		}
		return nil
	},
}

var landReadableCmd = &cobra.Command{
	Use:   "readable",
	Short: "Re-extract readable text through the clean extractor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		limit, _ := cmd.Flags().GetInt("limit")
		merge, _ := cmd.Flags().GetString("merge")
		useLLM, _ := cmd.Flags().GetBool("llm")

		strategy, ok := readable.ParseStrategy(merge)
		if !ok {
			return fmt.Errorf("unknown merge strategy %q", merge)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		land, err := s.GetLand(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			logError("land %q not found", name)
			return nil
		}
		if err != nil {
			return err
		}

		lex, err := landLexicon(ctx, s, land)
		if err != nil {
			return err
		}

		var g gate.Gate
		if useLLM {
			if g, err = gate.New(cfg.LLM); err != nil {
				return err
			}
		}

		var extractor readable.CleanExtractor = readable.NewShioriExtractor(cfg.DefaultTimeout)
		if cli := readable.NewCLIExtractor(cfg.CleanExtractorCmd, cfg.DefaultTimeout); cli != nil {
			extractor = cli
		}

		var arc *archive.Client
		if cfg.Archive {
			arc = archive.NewClient("", cfg.DefaultTimeout)
		}

		r := readable.New(s, extractor, arc, lex, g, cfg.ParallelConnections)
		stats, err := r.Run(ctx, land, readable.Options{
			Limit:    limit,
			Depth:    depthFlag(cmd),
			Strategy: strategy,
		})
		if err != nil {
			return err
		}

		logInfo("readable: %d attempted, %d updated, %d failed",
			stats.Attempted, stats.Updated, stats.Failed)
		if stats.Attempted > 0 {
			markRan()
		}
		return nil
	},
}

var landConsolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Rebuild links and media from stored readable text",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		land, err := s.GetLand(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			logError("land %q not found", name)
			return nil
		}
		if err != nil {
			return err
		}

		lex, err := landLexicon(ctx, s, land)
		if err != nil {
			return err
		}

		var minRel *int
		if cmd.Flags().Changed("minrel") {
			v, _ := cmd.Flags().GetInt("minrel")
			minRel = &v
		}

		c := consolidate.New(s, lex, cfg.ParallelConnections)
		stats, err := c.Run(ctx, land, consolidate.Options{
			Limit:        limit,
			Depth:        depthFlag(cmd),
			MinRelevance: minRel,
		})
		if err != nil {
			return err
		}

		logInfo("consolidate: %d processed", stats.Processed)
		if stats.Processed > 0 {
			markRan()
		}
		return nil
	},
}

var landSerpURLsCmd = &cobra.Command{
	Use:   "serpurls",
	Short: "Seed a land from search-engine results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("land")
		query, _ := cmd.Flags().GetString("query")
		pages, _ := cmd.Flags().GetInt("pages")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		land, err := s.GetLand(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			logError("land %q not found", name)
			return nil
		}
		if err != nil {
			return err
		}

		client, err := serp.NewClient(cfg.Serp, cfg.DefaultTimeout)
		if err != nil {
			return err
		}
		results, err := client.Search(ctx, query, pages)
		if err != nil {
			return err
		}

		added, err := serp.Ingest(ctx, s, land.ID, results)
		if err != nil {
			return err
		}

		logInfo("serpurls: %d results, %d new expressions", len(results), added)
		if added > 0 {
			markRan()
		}
		return nil
	},
}

// depthFlag reads the optional --depth flag, nil when unset.
func depthFlag(cmd *cobra.Command) *int {
	if !cmd.Flags().Changed("depth") {
		return nil
	}
	v, _ := cmd.Flags().GetInt("depth")
	return &v
}

func init() {
	landCrawlCmd.Flags().String("name", "", "land name")
	landCrawlCmd.Flags().Int("limit", 0, "cap on fetch attempts")
	landCrawlCmd.Flags().String("http", "", "re-crawl expressions with this HTTP status")
	landCrawlCmd.Flags().Int("depth", 0, "restrict to one depth")
	_ = landCrawlCmd.MarkFlagRequired("name")

	landReadableCmd.Flags().String("name", "", "land name")
	landReadableCmd.Flags().Int("limit", 0, "cap on expressions processed")
	landReadableCmd.Flags().Int("depth", 0, "restrict to one depth")
	landReadableCmd.Flags().String("merge", "smart_merge",
		"merge strategy: smart_merge, mercury_priority or preserve_existing")
	landReadableCmd.Flags().Bool("llm", false, "consult the LLM relevance gate")
	_ = landReadableCmd.MarkFlagRequired("name")

	landConsolidateCmd.Flags().String("name", "", "land name")
	landConsolidateCmd.Flags().Int("limit", 0, "cap on expressions processed")
	landConsolidateCmd.Flags().Int("depth", 0, "restrict to one depth")
	landConsolidateCmd.Flags().Int("minrel", 0, "minimum relevance filter")
	_ = landConsolidateCmd.MarkFlagRequired("name")

	landSerpURLsCmd.Flags().String("land", "", "land name")
	landSerpURLsCmd.Flags().String("query", "", "search query")
	landSerpURLsCmd.Flags().Int("pages", 1, "result pages to fetch")
	_ = landSerpURLsCmd.MarkFlagRequired("land")
	_ = landSerpURLsCmd.MarkFlagRequired("query")

	landCmd.AddCommand(landCrawlCmd, landReadableCmd, landConsolidateCmd, landSerpURLsCmd)
}
