package cmd

import (
	"fmt"

	"arxcore/core/entity"

	"github.com/spf13/cobra"
)

// diffCmd shows staged changes, or the changes between two commits.
var diffCmd = &cobra.Command{
	Use:   "diff [from to]",
	Short: "Show staged or historical changes",
	Long: `Without arguments, shows the field-level changes the staged mutations
would apply to the current branch tip. With two commit IDs, shows the
changes between those commits.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or two commit IDs")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		var changes []entity.Change
		if len(args) == 2 {
			changes, err = s.store.DiffRange(args[0], args[1])
		} else {
			changes, err = s.store.Diff()
		}
		if err != nil {
			return err
		}

		if len(changes) == 0 {
			fmt.Println("no changes")
			return nil
		}
		printChanges(changes)
		return nil
	},
}

func printChanges(changes []entity.Change) {
	for _, c := range changes {
		fmt.Printf("%-7s %s\n", c.Op, c.Path)
		for _, f := range c.Fields {
			switch {
			case f.Old == "":
				fmt.Printf("        %s: %s\n", f.Field, f.New)
			case f.New == "":
				fmt.Printf("        %s: %s (removed)\n", f.Field, f.Old)
			default:
				fmt.Printf("        %s: %s -> %s\n", f.Field, f.Old, f.New)
			}
		}
	}
}

func init() {
	RootCmd.AddCommand(diffCmd)
}
