package cmd

import (
	"errors"
	"fmt"
	"os"

	"arxcore/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes: validation failures are 1, unresolved merge conflicts 2,
// driver and storage I/O failures 3.
const (
	exitValidation = 1
	exitConflicts  = 2
	exitIO         = 3
)

// codedError carries a process exit code alongside the cause.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// withCode tags an error with a non-default exit code.
func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "arxcore",
	Short: "Building equipment version control",
	Long: `arxcore versions building equipment as content-addressed snapshots.
It reconciles BIM exports, bucket exports and field captures into one
commit history, and serves queries over the committed state.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Use the application's standard logger for error reporting
		// We default to console format to match user expectations (CLI tool)
		// We use "debug" level configuration to get ISO8601 timestamps (DevConfig) instead of Epoch (ProdConfig)
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		code := exitValidation
		var coded *codedError
		if errors.As(err, &coded) {
			code = coded.code
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			// Log the error with structured logger (Console encoding will make it pretty)
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Println(err)
		}
		os.Exit(code)
	}
}
