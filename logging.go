package main

import (
	"context"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type loggerKey struct{}

func addLoggerFlags(flags *pflag.FlagSet) {
	flags.Int("log-verbosity", 0, "log verbosity. Higher value means more log")
	flags.String("log-file", "", "output logs to specified file")
}

func getLogger(cmd *cobra.Command) logr.Logger {
	if ctx := cmd.Context(); ctx != nil {
		if v := ctx.Value(loggerKey{}); v != nil {
			return v.(logr.Logger)
		}
	}
	return logr.Discard()
}

// setupLogger builds the logger from the log flags and stores it in the
// command context. The editor owns the terminal, so without --log-file its
// logs are discarded; other commands log to stderr.
func setupLogger(cmd *cobra.Command, interactive bool) (cleanup func(), err error) {
	verbosity, err := cmd.Flags().GetInt("log-verbosity")
	if err != nil {
		return nil, err
	}
	logFile, err := cmd.Flags().GetString("log-file")
	if err != nil {
		return nil, err
	}

	var logger logr.Logger
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		logger = stdr.New(log.New(f, "", log.LstdFlags))
		cleanup = func() {
			f.Close()
		}
	case interactive:
		logger = logr.Discard()
	default:
		logger = stdr.New(log.New(cmd.ErrOrStderr(), "", log.LstdFlags))
	}
	stdr.SetVerbosity(verbosity)
	logger = logger.WithName("mdbed")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, loggerKey{}, logger))
	return cleanup, nil
}
