package cmd

import (
	"context"
	"fmt"

	"arxcore/core/config"
	"arxcore/core/pending"
	"arxcore/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileAll         bool
	reconcileSourcesFile string
)

// reconcileCmd runs one reconciliation cycle for one or all sources.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile [source]",
	Short: "Reconcile external sources into the repository",
	Long: `Runs one extract-merge-apply cycle for a configured source. The source's
current state is extracted through its driver, three-way merged against
the branch tip using the last delivered state as the ancestor, and
committed when anything changed. Bidirectional sources get the merged
state pushed back.

Sources are declared in a JSON file, one entry per source:

  [{"name": "bim", "locator": "bimjson:///exports/hq",
    "policy": "bidirectional", "interval": "15m"}]

Examples:
  # Reconcile one source
  arxcore reconcile bim

  # Reconcile every configured source
  arxcore reconcile --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "Reconcile every configured source")
	reconcileCmd.Flags().StringVar(&reconcileSourcesFile, "sources", "", "Sources file (defaults to reconcile.sources_file)")
	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if !reconcileAll && len(args) == 0 {
		return fmt.Errorf("name a source or pass --all")
	}

	s, err := openSession()
	if err != nil {
		return err
	}

	path := reconcileSourcesFile
	if path == "" {
		path = s.cfg.Reconcile.SourcesFile
	}
	if path == "" {
		return fmt.Errorf("no sources file: pass --sources or set RECONCILE_SOURCES_FILE")
	}
	sources, err := config.LoadSources(path)
	if err != nil {
		return err
	}

	reg, err := pending.Load(s.store.Dir())
	if err != nil {
		return err
	}
	registry, err := buildRegistry(s.cfg, reg, s.log)
	if err != nil {
		return err
	}

	engine := reconcile.NewEngine(s.store, registry, s.cfg.Reconcile, s.log)
	for _, src := range sources {
		if err := engine.AddSource(src); err != nil {
			return err
		}
	}

	names := args
	if reconcileAll {
		names = names[:0]
		for _, src := range sources {
			names = append(names, src.Name)
		}
	}

	ctx := context.Background()
	for _, name := range names {
		report, err := engine.ReconcileOnce(ctx, name)
		if err != nil {
			return withCode(exitIO, fmt.Errorf("reconcile %s: %w", name, err))
		}
		printReconcileReport(s.log, report)
	}
	return nil
}

// printReconcileReport logs the outcome of one cycle.
func printReconcileReport(l *zap.Logger, report *reconcile.Report) {
	if report.Unchanged {
		l.Info("Source unchanged, nothing committed",
			zap.String("source", report.Source))
		return
	}
	l.Info("Reconciliation report",
		zap.String("source", report.Source),
		zap.String("commit", report.CommitID),
		zap.Int("changes", report.Changes),
		zap.Int("conflicts", report.Conflicts),
	)
}
