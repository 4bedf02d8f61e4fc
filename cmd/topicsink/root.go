package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/miladsoleymani/topicsink/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel  string
	logFormat string

	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "topicsink",
		Short:         "Record broker topics into append-only files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(g.logLevel)
			if err != nil {
				return err
			}
			format, err := logging.ParseFormat(g.logFormat)
			if err != nil {
				return err
			}
			g.logger = logging.New(os.Stderr, level, format)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(
		newRunCmd(g),
		newPublishCmd(g),
		newValidateCmd(g),
	)
	return cmd
}
