package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the landseer database",
}

var dbSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Destroy and recreate the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stderr, "This destroys all stored data. Type Y to confirm: ")
		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.TrimSpace(line) != "Y" {
			logInfo("aborted")
			return nil
		}

		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Reset(); err != nil {
			return err
		}
		logInfo("database recreated at %s", s.Path())
		markRan()
		return nil
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(*cobra.Command, []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Migrate(); err != nil {
			return err
		}
		logInfo("database up to date at %s", s.Path())
		markRan()
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbSetupCmd, dbMigrateCmd)
	rootCmd.AddCommand(dbCmd)
}
