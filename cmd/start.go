package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"arxcore/core/config"
	"arxcore/core/database"
	"arxcore/core/entity"
	"arxcore/core/index"
	"arxcore/core/logger"
	"arxcore/core/objectstore"
	"arxcore/core/pending"
	"arxcore/core/query"
	"arxcore/core/reconcile"
	"arxcore/core/server"
	"arxcore/core/spatial"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arxcore daemon",
	Long: `Starts the long-running daemon: the reconciliation engine with its
scheduled and watch-triggered cycles, the derived relational and
spatial indexes, and the HTTP API.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Open the repository, initializing it on first start when a
		// building is configured
		store, err := objectstore.Open(cfg.Repo.Dir, logg)
		if err != nil {
			if cfg.Repo.Building == "" {
				logg.Fatal("Failed to open repository", zap.Error(err))
			}
			store, err = objectstore.Init(cfg.Repo.Dir, cfg.Repo.Building, logg)
			if err != nil {
				logg.Fatal("Failed to initialize repository", zap.Error(err))
			}
		}

		// 4. Connect to the relational index database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		idx, err := index.New(db, logg)
		if err != nil {
			logg.Fatal("Failed to open relational index", zap.Error(err))
		}

		// 5. Rebuild derived indexes from the branch tip. One-shot CLI
		// commits do not maintain them, so startup state may be stale.
		if ok, verr := idx.Verify(); verr != nil || !ok {
			logg.Warn("Relational index schema mismatch", zap.Error(verr))
		}
		head, err := store.Head()
		if err != nil {
			logg.Fatal("Failed to read HEAD", zap.Error(err))
		}
		tip, err := store.TipSnapshot(head)
		if err != nil {
			logg.Fatal("Failed to read branch tip", zap.Error(err))
		}
		if err := idx.RebuildFrom(tip); err != nil {
			logg.Fatal("Failed to rebuild relational index", zap.Error(err))
		}
		spat := spatial.New(0)
		spat.RebuildFrom(tip)

		// 6. Pending registry and drivers
		reg, err := pending.Load(store.Dir())
		if err != nil {
			logg.Fatal("Failed to load pending registry", zap.Error(err))
		}
		registry, err := buildRegistry(cfg, reg, logg)
		if err != nil {
			logg.Fatal("Failed to build driver registry", zap.Error(err))
		}

		// 7. Reconciliation engine, keeping the derived indexes fresh on
		// every commit it produces
		engine := reconcile.NewEngine(store, registry, cfg.Reconcile, logg)
		engine.OnCommit(func(info objectstore.CommitInfo, changes []entity.Change, snap *entity.Snapshot) {
			// Spatial updates stay proportional to the diff. Removed
			// entity IDs must come from the relational rows before
			// ApplyCommit drops them.
			var removed []string
			for _, ch := range changes {
				if ch.Op == entity.OpRemove {
					removed = append(removed, ch.Path)
				}
			}
			var updates []spatial.Update
			rows, err := idx.ByPaths(removed)
			if err != nil {
				logg.Error("Failed to resolve removed entities", zap.Error(err))
			}
			for _, r := range rows {
				updates = append(updates, spatial.Update{ID: r.EntityID})
			}
			for _, ch := range changes {
				if ch.Op == entity.OpRemove {
					continue
				}
				if e := snap.Entities[ch.Path]; e != nil {
					updates = append(updates, spatial.Update{ID: e.ID, Point: e.Position})
				}
			}

			if err := idx.ApplyCommit(info, changes, snap); err != nil {
				logg.Error("Failed to update relational index, rebuilding", zap.Error(err))
				if err := idx.RebuildFrom(snap); err != nil {
					logg.Error("Relational index rebuild failed", zap.Error(err))
				}
			}
			spat.Apply(updates)
		})

		if cfg.Reconcile.SourcesFile != "" {
			sources, err := config.LoadSources(cfg.Reconcile.SourcesFile)
			if err != nil {
				logg.Fatal("Failed to load sources", zap.Error(err))
			}
			for _, src := range sources {
				if err := engine.AddSource(src); err != nil {
					logg.Fatal("Failed to add source", zap.String("source", src.Name), zap.Error(err))
				}
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		engine.Start(ctx)

		// 8. HTTP API
		srv := server.New(cfg.Server, server.Deps{
			Store:   store,
			Query:   query.NewEngine(idx, spat, logg),
			Pending: reg,
			Engine:  engine,
		}, logg)
		go func() {
			if err := srv.Listen(); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down...")
		_ = srv.Shutdown()
		engine.Stop()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
