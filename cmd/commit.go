package cmd

import (
	"errors"
	"fmt"

	"arxcore/core/objectstore"

	"github.com/spf13/cobra"
)

var (
	commitMessage string
	commitAuthor  string
)

// commitCmd snapshots the staged mutations onto the current branch.
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit staged mutations",
	Long: `Applies the staged mutations to the current branch tip and records a
new commit. Mutations that change nothing against the tip are dropped
silently; a commit is only created when the snapshot actually changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		author := commitAuthor
		if author == "" {
			author = s.cfg.Repo.Author
		}

		id, err := s.store.Commit(author, commitMessage)
		if errors.Is(err, objectstore.ErrNothingToCommit) {
			fmt.Println("nothing to commit")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit message")
	commitCmd.Flags().StringVar(&commitAuthor, "author", "", "Commit author (defaults to repo.author)")
	_ = commitCmd.MarkFlagRequired("message")
	RootCmd.AddCommand(commitCmd)
}
