package main

// @title       DASA hub API
// @version     1.0
// @description Announcements, events and lost & found for the student association.

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization

import (
	"context"
	"fmt"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

const ErrExitCode = 1

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type rootOptions struct {
	configFile string
}

func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		// #nosec G705 -- CLI output only; control characters are stripped.
		fmt.Fprintln(os.Stderr, sanitizeCLIError(err))
		os.Exit(ErrExitCode)
	}
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:     "dasa-hub",
		Short:   "DASA hub announcement server",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		// Without a subcommand the binary serves, so container images can
		// keep an empty CMD.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default ./config.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSweepCmd(opts),
		newBackfillCmd(opts),
		newHealthcheckCmd(),
	)
	return cmd
}

func sanitizeCLIError(err error) string {
	if err == nil {
		return ""
	}

	text := strings.ReplaceAll(err.Error(), "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return strings.TrimSpace(text)
}
