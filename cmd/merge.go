package cmd

import (
	"fmt"

	"arxcore/core/resolve"

	"github.com/spf13/cobra"
)

var (
	mergeStrategy       string
	mergeOursPriority   int
	mergeTheirsPriority int
	mergeDeleteWins     bool
	mergeAuthor         string
)

// mergeCmd merges another branch into the current one.
var mergeCmd = &cobra.Command{
	Use:   "merge <branch>",
	Short: "Merge a branch into the current one",
	Long: `Merges the named branch into the current branch. Fast-forwards when
possible; otherwise resolves field-level disagreements with the chosen
strategy and records a merge commit.

Three-way merging flags fields both sides changed divergently as
unresolved; an unresolved conflict blocks the merge and exits with
code 2. Resolve by staging the wanted values and committing, then
merge again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		strategy := resolve.Strategy(mergeStrategy)
		if !strategy.Valid() {
			return fmt.Errorf("unknown strategy %q (priority-wins, newest-wins, three-way)", mergeStrategy)
		}

		author := mergeAuthor
		if author == "" {
			author = s.cfg.Repo.Author
		}

		result, err := s.store.Merge(args[0], resolve.Options{
			Strategy:       strategy,
			OursPriority:   mergeOursPriority,
			TheirsPriority: mergeTheirsPriority,
			DeleteWins:     mergeDeleteWins,
		}, author)
		if err != nil {
			return err
		}

		if result.CommitID == "" {
			for _, c := range result.Conflicts {
				if !c.Unresolved() {
					continue
				}
				fmt.Printf("CONFLICT %s %s (ours %q, theirs %q)\n", c.Path, c.Field, c.Ours, c.Theirs)
			}
			return withCode(exitConflicts, fmt.Errorf("merge blocked by unresolved conflicts"))
		}

		if result.FastForward {
			fmt.Printf("fast-forward to %s\n", result.CommitID)
		} else {
			fmt.Println(result.CommitID)
		}
		for _, c := range result.Conflicts {
			fmt.Printf("resolved %s %s -> %q (%s)\n", c.Path, c.Field, c.Resolved, c.Resolution)
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeStrategy, "strategy", string(resolve.StrategyThreeWay), "Resolution strategy (priority-wins, newest-wins, three-way)")
	mergeCmd.Flags().IntVar(&mergeOursPriority, "ours-priority", 0, "Priority of the current branch")
	mergeCmd.Flags().IntVar(&mergeTheirsPriority, "theirs-priority", 0, "Priority of the merged branch")
	mergeCmd.Flags().BoolVar(&mergeDeleteWins, "delete-wins", false, "Apply deletions in delete-modify conflicts instead of keeping")
	mergeCmd.Flags().StringVar(&mergeAuthor, "author", "", "Merge commit author (defaults to repo.author)")
	RootCmd.AddCommand(mergeCmd)
}
