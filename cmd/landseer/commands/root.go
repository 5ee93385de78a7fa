// Package commands implements the CLI commands for landseer.
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/landseer/landseer/internal/config"
	"github.com/landseer/landseer/internal/lexicon"
	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "landseer",
	Short: "Web intelligence corpus builder for research projects",
	Long: `Landseer builds research corpora from the web: seed a land with
URLs, crawl them breadth-first, extract readable text, score it against
the land's lexicon and consolidate the resulting expression graph.

Examples:
  # Create a land and seed it
  landseer land create --name asthma --desc "asthma research" --lang fr,en
  landseer land addterm --land asthma --terms "asthme,ventoline,pollution"
  landseer land addurl --land asthma --path seeds.txt

  # Crawl, then re-extract readable text
  landseer land crawl --name asthma --limit 100
  landseer land readable --name asthma --merge smart_merge

  # Harvest domain metadata
  landseer domain crawl --limit 50`,
	SilenceUsage: true,
}

// ran flips when a command actually did work. The CLI exits 1 in that
// case and 0 for no-ops, aborts and errors, inverting the usual Unix
// convention for compatibility with existing tooling.
var ran bool

func markRan() { ran = true }

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .landseer.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	rootCmd.PersistentPreRun = func(*cobra.Command, []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
		})
	}
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".landseer")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LANDSEER")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 0
	}
	if ran {
		return 1
	}
	return 0
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(filepath.Join(cfg.DataLocation, "landseer.db"), cfg.HeuristicTable)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// landBlobDir is the per-land directory for raw HTML and other blobs.
func landBlobDir(cfg *config.Config, landID int64) string {
	return filepath.Join(cfg.DataLocation, "lands", fmt.Sprintf("%d", landID))
}

func landLexicon(ctx context.Context, s *store.Store, land *store.Land) (*lexicon.Lexicon, error) {
	lemmas, err := s.LandLemmas(ctx, land.ID)
	if err != nil {
		return nil, err
	}
	return lexicon.New(lemmas, land.PrimaryLang()), nil
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
