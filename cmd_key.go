package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mdbed/internal/dblib"
)

func newKeyCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key <file|alias> <table>",
		Short: "Show the column(s) used to locate rows of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cleanup, err := prepare(cmd, cfg, args[0], false)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			session, err := cfg.Open(ctx, getLogger(cmd))
			if err != nil {
				return err
			}
			defer session.Close()

			kd, err := dblib.NewResolver(session).Resolve(ctx, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), kd.String())
			if kd.Fallback {
				color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "warning: "+kd.Reason)
			}
			return nil
		},
	}
	return cmd
}
