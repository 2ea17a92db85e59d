package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/quillfix/internal/learning"
	"github.com/MrWong99/quillfix/pkg/correction"
)

func (c *cli) learnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn ORIGINAL EDITED",
		Short: "Record one user edit of a transcription",
		Example: `  quillfix learn "I recieve teh mail" "I receive the mail"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			opts := append(c.cfg.Learning.EngineOptions(),
				learning.WithStore(store),
				learning.WithLogger(c.logger),
			)
			learned, err := learning.New(opts...).LearnFromEdit(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.jsonOutput {
				return printJSON(out, learned)
			}
			if len(learned) == 0 {
				fmt.Fprintln(out, "no typo corrections found")
				return nil
			}
			for _, l := range learned {
				fmt.Fprintf(out, "%s -> %s (similarity %.2f)\n", l.Original, l.Corrected, l.Similarity)
			}
			return nil
		},
	}
}

func (c *cli) applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [TEXT...]",
		Short: "Correct a transcription with the learned corrections",
		Long: `Correct a transcription with every stored correction at or above the
minimum confidence. Without arguments the text is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimRight(string(b), "\n")
			}

			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			opts := append(c.cfg.Learning.EngineOptions(), learning.WithLogger(c.logger))
			engine, err := learning.FromStore(ctx, store, opts...)
			if err != nil {
				return err
			}
			corrected, applied := engine.ApplyCorrections(text)

			out := cmd.OutOrStdout()
			if c.jsonOutput {
				return printJSON(out, struct {
					Text    string                       `json:"text"`
					Applied []learning.AppliedCorrection `json:"applied"`
				}{corrected, applied})
			}
			fmt.Fprintln(out, corrected)
			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var minConfidence float64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored corrections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.ListCorrections(ctx)
			if err != nil {
				return err
			}
			records := all[:0]
			for _, r := range all {
				if r.Confidence >= minConfidence {
					records = append(records, r)
				}
			}

			out := cmd.OutOrStdout()
			if c.jsonOutput {
				return printJSON(out, records)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORIGINAL\tCORRECTED\tSEEN\tCONFIDENCE\tSOURCE\tUPDATED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\t%s\n",
					r.Original, r.Corrected, r.Occurrences, r.Confidence, r.Source,
					r.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "only list corrections at or above this confidence")
	return cmd
}

func (c *cli) forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget ORIGINAL [CORRECTED]",
		Short: "Delete stored corrections",
		Long: `Delete the stored correction ORIGINAL -> CORRECTED, or every correction for
ORIGINAL when CORRECTED is omitted. Running servers keep their cached copy
until they reload.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed := 0
			if len(args) == 2 {
				err := store.DeleteCorrection(ctx, args[0], args[1])
				switch {
				case errors.Is(err, correction.ErrNotFound):
				case err != nil:
					return err
				default:
					removed = 1
				}
			} else {
				removed, err = store.DeleteByOriginal(ctx, args[0])
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if c.jsonOutput {
				return printJSON(out, map[string]int{"removed": removed})
			}
			fmt.Fprintf(out, "removed %d correction(s)\n", removed)
			return nil
		},
	}
}
