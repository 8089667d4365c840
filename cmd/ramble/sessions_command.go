package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ramble/internal/persistence"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recently processed sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Persistence.Enabled {
				return errors.New("persistence is disabled; enable it in the config to record processed sessions")
			}

			db, err := persistence.Open(cfg.Persistence.DBPath)
			if err != nil {
				return fmt.Errorf("open session database: %w", err)
			}
			defer db.Close()

			records, err := db.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No processed sessions recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					strconv.FormatInt(record.ID, 10),
					record.CreatedAt.Local().Format("2006-01-02 15:04"),
					record.OriginalFilename,
					truncate(titleFromRecord(record), 40),
					strconv.Itoa(record.TopicCount),
					strconv.Itoa(record.TaskCount),
					record.Status,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Processed", "File", "Title", "Topics", "Tasks", "Status"},
				rows, 0, 4, 5))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show")
	return cmd
}

// titleFromRecord derives a display title from the summary heading.
func titleFromRecord(record persistence.Record) string {
	firstLine, _, _ := strings.Cut(record.Summary, "\n")
	return strings.TrimSpace(strings.TrimLeft(firstLine, "#"))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
