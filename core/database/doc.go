// Package database opens the connection backing the derived relational
// index.
//
// It wraps GORM with the application's configuration. Two drivers are
// supported: the embedded sqlite database (default, zero setup) and
// MySQL for shared deployments. The index schema itself is owned by the
// index package; this package only establishes connections and inspects
// schemas.
//
// # Schema Inspection
//
// GetTableColumns reads the live column definitions of a table on either
// backend. The index uses it to detect a schema mismatch after upgrades,
// which triggers a full index rebuild from the latest snapshot.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", zap.Error(err))
//	}
package database
