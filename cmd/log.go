package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	logLimit   int
	logPattern string
)

// logCmd prints the commit history of the current branch.
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show commit history",
	Long: `Shows commits reachable from the current branch tip, newest first.
With --path, only commits touching addresses matching the glob pattern
are shown (segment wildcards * and ?, spanning **).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		history, err := s.store.History(logPattern, logLimit)
		if err != nil {
			return err
		}
		for _, c := range history {
			fmt.Printf("commit %s\n", c.ID)
			if len(c.Parents) > 1 {
				fmt.Printf("Merge:  %s\n", strings.Join(shorten(c.Parents), " "))
			}
			fmt.Printf("Author: %s\n", c.Author)
			fmt.Printf("Date:   %s\n", c.CreatedAt.Format(time.RFC3339))
			fmt.Printf("\n    %s\n\n", c.Message)
		}
		return nil
	},
}

func shorten(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if len(id) > 12 {
			id = id[:12]
		}
		out[i] = id
	}
	return out
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "Maximum commits to show (0 for all)")
	logCmd.Flags().StringVar(&logPattern, "path", "", "Only commits touching addresses matching this glob")
	RootCmd.AddCommand(logCmd)
}
