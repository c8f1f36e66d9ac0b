package objectstore

// Config locates the repository on disk and identifies the operator.
type Config struct {
	// Dir is the repository root directory.
	Dir string `mapstructure:"dir" default:".arxcore"`
	// Building is the building slug, required when initializing a new
	// repository and checked against an existing one.
	Building string `mapstructure:"building" default:""`
	// Author is recorded on commits made by this process.
	Author string `mapstructure:"author" default:"arxcore"`
}
