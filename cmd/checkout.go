package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	checkoutCreate bool
	checkoutFrom   string
	checkoutList   bool
)

// checkoutCmd switches branches or creates new ones.
var checkoutCmd = &cobra.Command{
	Use:   "checkout <branch>",
	Short: "Switch to a branch",
	Long: `Switches HEAD to a branch. With --create the branch is created first,
pointing at the current tip or at the commit given by --from. The
staging area carries over; staged mutations apply to whatever branch
is committed next.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		if checkoutList {
			head, err := s.store.Head()
			if err != nil {
				return err
			}
			branches, err := s.store.Branches()
			if err != nil {
				return err
			}
			for _, b := range branches {
				marker := "  "
				if b == head {
					marker = "* "
				}
				fmt.Println(marker + b)
			}
			return nil
		}

		if len(args) != 1 {
			return fmt.Errorf("expected a branch name")
		}
		branch := args[0]

		if checkoutCreate {
			if err := s.store.CreateBranch(branch, checkoutFrom); err != nil {
				return err
			}
		}
		return s.store.Checkout(branch)
	},
}

func init() {
	checkoutCmd.Flags().BoolVarP(&checkoutCreate, "create", "b", false, "Create the branch before switching")
	checkoutCmd.Flags().StringVar(&checkoutFrom, "from", "", "Commit the new branch starts from (defaults to the current tip)")
	checkoutCmd.Flags().BoolVar(&checkoutList, "list", false, "List branches instead of switching")
	RootCmd.AddCommand(checkoutCmd)
}
