// Package config provides configuration management for arxcore.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Repo: object store location, building slug and commit author
//   - Server: HTTP server settings (port, API key)
//   - Database: relational index connection details (sqlite or MySQL)
//   - Storage: S3/MinIO credentials and bucket settings
//   - Log: logging level and format
//   - Reconcile: engine tuning (workers, timeouts, backoff) and the sources file
//
// Environment variables map onto nested keys with underscores, so
// SERVER_PORT sets server.port and RECONCILE_WORKERS sets reconcile.workers.
//
// External sources for the reconciliation engine are declared separately
// in a JSON file loaded with LoadSources:
//
//	[
//	  {"name": "bim", "locator": "bimjson:///exports/hq", "policy": "bidirectional",
//	   "priority": 0, "interval": "15m", "strategy": "three-way"}
//	]
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
