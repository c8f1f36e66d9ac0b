package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"arxcore/core/database"
	"arxcore/core/index"
	"arxcore/core/query"
	"arxcore/core/spatial"

	"github.com/spf13/cobra"
)

// queryCmd evaluates one query against the current branch tip.
var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Query the committed state",
	Long: `Evaluates a query over the current branch tip and prints the result
as JSON. Predicates are AND-joined; WITHIN(x, y, z, radius) restricts
to a sphere; COUNT and GROUP BY <field> aggregate.

Examples:
  arxcore query "kind = equipment AND status = failed"
  arxcore query "WITHIN(12.5, 3.2, 9.0, 5) kind = equipment"
  arxcore query "COUNT status = degraded"
  arxcore query "GROUP BY status kind = equipment"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		db, err := database.Connect(s.cfg.Database)
		if err != nil {
			return withCode(exitIO, fmt.Errorf("failed to connect to database: %w", err))
		}
		idx, err := index.New(db, s.log)
		if err != nil {
			return withCode(exitIO, err)
		}

		// One-shot invocations rebuild both indexes from the branch tip:
		// commits made by other commands do not maintain the derived
		// indexes, only the daemon does.
		head, err := s.store.Head()
		if err != nil {
			return err
		}
		tip, err := s.store.TipSnapshot(head)
		if err != nil {
			return err
		}
		if err := idx.RebuildFrom(tip); err != nil {
			return withCode(exitIO, err)
		}
		spat := spatial.New(0)
		spat.RebuildFrom(tip)

		engine := query.NewEngine(idx, spat, s.log)
		result, err := engine.Run(strings.Join(args, " "))
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(queryCmd)
}
