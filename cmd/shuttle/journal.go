package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/journal"
)

func newJournalCmd(a *app) *cobra.Command {
	var (
		limit   int
		pending bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled operations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			j, err := a.requireJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.List(limit, pending)
			if err != nil {
				return err
			}
			printEntries(a.stdout, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most N entries (0 for all)")
	cmd.Flags().BoolVar(&pending, "pending", false, "only show unfinished operations")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished entries older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			j, err := a.requireJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			n, err := j.Prune(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "pruned %d entries\n", n)
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "minimum age of pruned entries")
	cmd.AddCommand(prune)
	return cmd
}

func newRecoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recover [id]...",
		Short: "Resolve operations left unfinished by a crash",
		Long: `Bring unfinished journaled operations to a consistent state:

  move interrupted while copying      the partial destination is removed
  move interrupted removing source    the source removal is finished
  delete                              the delete is run again
  copy                                reported only; nothing is undone

Without arguments every unfinished operation is recovered.`,
		RunE: func(_ *cobra.Command, args []string) error {
			j, err := a.requireJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := recoverTargets(j, args)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.stdout, "nothing to recover")
				return nil
			}

			eng := engine.New(engine.Options{Logger: a.engineLogger()})
			failed := 0
			for _, e := range entries {
				action, err := j.Recover(e, eng)
				if err != nil {
					failed++
					slog.Error("recover failed", "id", e.ID, "op", e.Op, "error", err)
					continue
				}
				fmt.Fprintf(a.stdout, "%s  %s %s: %s\n", shortID(e.ID), e.Op, describe(e), action)
			}
			if failed > 0 {
				return exitWith(1)
			}
			return nil
		},
	}
}

// requireJournal opens the journal for the journal subcommands, where
// --no-journal makes no sense.
func (a *app) requireJournal() (*journal.Journal, error) {
	if a.noJournal {
		return nil, errors.New("--no-journal cannot be used with this command")
	}
	path := a.journalPath
	if path == "" {
		path = journal.DefaultPath()
	}
	return journal.Open(path)
}

func recoverTargets(j *journal.Journal, ids []string) ([]journal.Entry, error) {
	if len(ids) == 0 {
		return j.List(0, true)
	}
	out := make([]journal.Entry, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", s, err)
		}
		e, err := j.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func printEntries(w io.Writer, entries []journal.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tOP\tPHASE\tOUTCOME\tPATHS\tERROR")
	for _, e := range entries {
		outcome := e.Outcome
		if e.Pending() {
			outcome = "PENDING"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(e.ID), e.Started.Format(time.DateTime), e.Op, e.Phase,
			outcome, describe(e), e.Error)
	}
	tw.Flush()
}

func describe(e journal.Entry) string {
	if e.Dst == "" {
		return e.Src
	}
	return e.Src + " -> " + e.Dst
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
