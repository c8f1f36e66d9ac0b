package cmd

import (
	"fmt"

	"arxcore/core/config"
	"arxcore/core/logger"
	"arxcore/core/objectstore"

	"github.com/spf13/cobra"
)

var initBuilding string

// initCmd creates a new repository for one building.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new repository",
	Long: `Creates an empty repository at the configured directory with a root
commit on the main branch. The building slug becomes the first segment
of every address in the repository.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		l, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		building := initBuilding
		if building == "" {
			building = cfg.Repo.Building
		}
		if building == "" {
			return fmt.Errorf("no building named: pass --building or set REPO_BUILDING")
		}

		if _, err := objectstore.Init(cfg.Repo.Dir, building, l); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initBuilding, "building", "", "Building slug the repository versions")
	RootCmd.AddCommand(initCmd)
}
