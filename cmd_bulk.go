package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mdbed/internal/dblib"
)

func newBulkCmd(cfg *Config) *cobra.Command {
	var (
		mode  string
		value string
		yes   bool
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "bulk <file|alias> <table> <column>",
		Short: "Replace, prepend or append a constant in every row of a column",
		Long: `bulk rewrites every row of one column. Each row is updated in its own
statement and written immediately; a summary of successes and failures is
printed at the end.`,
		Example: strings.Join([]string{
			`  mdbed bulk shop.db products sku --mode prepend --value "EU-"`,
			`  mdbed bulk orders.accdb Orders Status --mode replace --value open --yes`,
		}, "\n"),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bulkMode, err := dblib.ParseBulkMode(mode)
			if err != nil {
				return err
			}
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

			table, column := args[1], args[2]
			surface := newCLISurface(cmd.InOrStdin(), cmd.ErrOrStderr(), yes)
			r := dblib.NewReconciler(session, dblib.NewResolver(session), surface)
			if _, err := r.Load(ctx, table); err != nil {
				return err
			}
			col := -1
			for i, name := range surface.Columns(table) {
				if name == column {
					col = i
				}
			}
			if col < 0 {
				return fmt.Errorf("table %s has no column %q", table, column)
			}
			total := surface.RowCount(table)
			if !surface.PromptConfirm(fmt.Sprintf("%s %q in %s.%s for %d rows?", bulkMode, value, table, column, total)) {
				return nil
			}

			var opts []dblib.BulkOption
			var bar *progressBar
			if !quiet && total > 0 {
				bar = newProgressBar(cmd.ErrOrStderr(), total, "updating")
				opts = append(opts, dblib.WithProgress(func(done, _ int) { bar.SetCurrent(done) }))
			}
			report, err := r.BulkEdit(ctx, table, col, bulkMode, value, opts...)
			if bar != nil {
				if err != nil {
					bar.Abort()
				} else {
					bar.Done()
				}
			}
			surface.flush()
			if err != nil {
				return err
			}
			switch {
			case report.Cancelled:
				return nil
			case report.Failed > 0:
				return fmt.Errorf("%d of %d rows failed", report.Failed, report.Rows)
			case report.Overwritten > 0:
				return fmt.Errorf("%d of %d rows share a key with an earlier row and kept its value", report.Overwritten, report.Rows)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "replace", "replace, prepend or append")
	cmd.Flags().StringVarP(&value, "value", "v", "", "constant to apply")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

// cliSurface is the display surface of non-interactive commands. Messages
// are held back while a progress bar owns the terminal.
type cliSurface struct {
	*dblib.Grid
	in      *bufio.Reader
	out     io.Writer
	yes     bool
	pending []string
}

func newCLISurface(in io.Reader, out io.Writer, yes bool) *cliSurface {
	return &cliSurface{Grid: dblib.NewGrid(), in: bufio.NewReader(in), out: out, yes: yes}
}

func (s *cliSurface) ShowMessage(kind dblib.MessageKind, text string) {
	var c *color.Color
	switch kind {
	case dblib.MessageError:
		c = color.New(color.FgRed)
	case dblib.MessageWarning:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgGreen)
	}
	s.pending = append(s.pending, c.Sprint(text))
}

func (s *cliSurface) flush() {
	for _, m := range s.pending {
		fmt.Fprintln(s.out, m)
	}
	s.pending = nil
}

// PromptForm is not available without a terminal UI.
func (s *cliSurface) PromptForm(title string, fields []string) (map[string]string, bool) {
	return nil, false
}

func (s *cliSurface) PromptConfirm(text string) bool {
	s.flush()
	if s.yes {
		return true
	}
	fmt.Fprintf(s.out, "%s [y/N] ", text)
	line, _ := s.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
