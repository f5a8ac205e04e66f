package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mdbed/internal/dblib"
)

func newTablesCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables <file|alias>",
		Short: "List tables with their columns and row key",
		Example: strings.Join([]string{
			`  mdbed tables orders.accdb`,
			`  mdbed tables shop --charset gbk`,
		}, "\n"),
		Args: cobra.ExactArgs(1),
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
			resolver := dblib.NewResolver(session)

			names, err := session.Tables(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				cols, err := session.Columns(ctx, name)
				if err != nil {
					color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
					continue
				}
				kd, err := resolver.Resolve(ctx, name)
				key := kd.String()
				switch {
				case err != nil:
					key = "?"
				case kd.Fallback:
					key += " *"
				}
				rows = append(rows, []string{name, describeColumns(cols), key})
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("TABLE", "COLUMNS", "KEY").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return lipgloss.NewStyle().Bold(true).Padding(0, 1)
					}
					return lipgloss.NewStyle().Padding(0, 1)
				})
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			fmt.Fprintf(cmd.OutOrStdout(), "%d tables; * marks a substitute key (no primary key)\n", len(rows))
			return nil
		},
	}
	return cmd
}

func describeColumns(cols []dblib.Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c.Type != "" {
			parts[i] = fmt.Sprintf("%s %s", c.Name, strings.ToLower(c.Type))
		} else {
			parts[i] = c.Name
		}
	}
	return strings.Join(parts, ", ")
}
