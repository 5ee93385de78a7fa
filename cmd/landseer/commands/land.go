package commands

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/landseer/landseer/internal/lexicon"
	"github.com/landseer/landseer/internal/output"
	"github.com/landseer/landseer/internal/store"
)

var landCmd = &cobra.Command{
	Use:   "land",
	Short: "Manage research lands",
}

var landCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a land",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		desc, _ := cmd.Flags().GetString("desc")
		langs, _ := cmd.Flags().GetString("lang")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		land, err := s.CreateLand(cmd.Context(), name, desc, lexicon.SplitTerms(langs))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(landBlobDir(cfg, land.ID), 0o755); err != nil {
			return err
		}

		logInfo("land %q created (id %d)", land.Name, land.ID)
		markRan()
		return nil
	},
}

var landListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lands with corpus counters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		format, _ := cmd.Flags().GetString("format")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		lands, err := s.ListLands(cmd.Context(), name)
		if err != nil {
			return err
		}
		if len(lands) == 0 {
			logInfo("no lands")
			return nil
		}

		w, err := output.NewWriter(cmd.OutOrStdout(), output.Format(format))
		if err != nil {
			return err
		}
		for _, land := range lands {
			if err := w.Write(land); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		markRan()
		return nil
	},
}

var landDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a land, or its low-relevance expressions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		maxRel, _ := cmd.Flags().GetInt("maxrel")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		land, err := s.GetLand(cmd.Context(), name)
		if errors.Is(err, store.ErrNotFound) {
			logError("land %q not found", name)
			return nil
		}
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("maxrel") {
			n, err := s.DeleteLowRelevance(cmd.Context(), land.ID, maxRel)
			if err != nil {
				return err
			}
			logInfo("deleted %d expressions below relevance %d", n, maxRel)
			markRan()
			return nil
		}

		if err := s.DeleteLand(cmd.Context(), land.ID); err != nil {
			return err
		}
		if err := os.RemoveAll(landBlobDir(cfg, land.ID)); err != nil {
			logError("blob directory removal failed: %v", err)
		}
		logInfo("land %q deleted", name)
		markRan()
		return nil
	},
}

var landAddTermCmd = &cobra.Command{
	Use:   "addterm",
	Short: "Add lexicon terms to a land and rescore its corpus",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("land")
		terms, _ := cmd.Flags().GetString("terms")

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

		split := lexicon.SplitTerms(terms)
		if len(split) == 0 {
			logInfo("no terms given")
			return nil
		}

		stemmer := lexicon.NewStemmer(land.PrimaryLang())
		words := make([]store.Word, 0, len(split))
		for _, term := range split {
			words = append(words, store.Word{Term: term, Lemma: stemmer.Lemmatize(term)})
		}
		if err := s.AddTerms(ctx, land.ID, words); err != nil {
			return err
		}

		// The lexicon changed, so every stored readable needs a fresh
		// score before the approval sweep.
		lex, err := landLexicon(ctx, s, land)
		if err != nil {
			return err
		}
		scored, err := s.ExpressionsWithReadable(ctx, land.ID)
		if err != nil {
			return err
		}
		for i := range scored {
			expr := &scored[i]
			relevance := lex.Score(expr.TitleValue(), expr.ReadableValue())
			expr.Relevance = &relevance
			if err := s.SaveExpression(ctx, expr); err != nil {
				return err
			}
		}
		if err := s.EnforceApproval(ctx, land.ID); err != nil {
			return err
		}

		logInfo("added %d terms, rescored %d expressions", len(words), len(scored))
		markRan()
		return nil
	},
}

var landAddURLCmd = &cobra.Command{
	Use:   "addurl",
	Short: "Seed a land with URLs at depth 0",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("land")
		urls, _ := cmd.Flags().GetString("urls")
		path, _ := cmd.Flags().GetString("path")

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

		seeds := lexicon.SplitTerms(urls)
		if path != "" {
			fromFile, err := readURLFile(path)
			if err != nil {
				return err
			}
			seeds = append(seeds, fromFile...)
		}
		if len(seeds) == 0 {
			logInfo("no URLs given")
			return nil
		}

		added := 0
		for _, u := range seeds {
			expr, err := s.EnsureExpression(ctx, land.ID, u, 0)
			if err != nil {
				return err
			}
			if expr != nil {
				added++
			}
		}

		logInfo("added %d of %d URLs to land %q", added, len(seeds), name)
		markRan()
		return nil
	},
}

// readURLFile reads seed URLs from a file, one per line, skipping
// blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func init() {
	landCreateCmd.Flags().String("name", "", "land name")
	landCreateCmd.Flags().String("desc", "", "land description")
	landCreateCmd.Flags().String("lang", "fr", "comma-separated language codes, first is primary")
	_ = landCreateCmd.MarkFlagRequired("name")

	landListCmd.Flags().String("name", "", "filter by exact name")
	landListCmd.Flags().String("format", "json", "output format: json, jsonl or yaml")

	landDeleteCmd.Flags().String("name", "", "land name")
	landDeleteCmd.Flags().Int("maxrel", 0, "only delete fetched expressions below this relevance")
	_ = landDeleteCmd.MarkFlagRequired("name")

	landAddTermCmd.Flags().String("land", "", "land name")
	landAddTermCmd.Flags().String("terms", "", "comma-separated terms")
	_ = landAddTermCmd.MarkFlagRequired("land")
	_ = landAddTermCmd.MarkFlagRequired("terms")

	landAddURLCmd.Flags().String("land", "", "land name")
	landAddURLCmd.Flags().String("urls", "", "comma-separated URLs")
	landAddURLCmd.Flags().String("path", "", "file with one URL per line")
	_ = landAddURLCmd.MarkFlagRequired("land")

	landCmd.AddCommand(landCreateCmd, landListCmd, landDeleteCmd, landAddTermCmd, landAddURLCmd)
	rootCmd.AddCommand(landCmd)
}
