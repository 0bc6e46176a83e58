package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"permitflow/internal/session"
)

func newSessionsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions and their working sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := session.Open(cfg, nil)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer func() { _ = store.Close() }()

			rendered, err := sessionsTable(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
}

func sessionsTable(ctx context.Context, store *session.Store) (string, error) {
	summaries, err := store.Summaries(ctx)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	if len(summaries) == 0 {
		return "no sessions", nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, sum := range summaries {
		window := ""
		if sum.RangeEnd > 0 {
			window = fmt.Sprintf("%d-%d", sum.RangeStart, sum.RangeEnd)
		}
		rows = append(rows, []string{
			sum.UserID,
			sum.State,
			sum.District,
			window,
			strconv.Itoa(sum.Records),
			strconv.Itoa(sum.Eligible),
			strconv.Itoa(sum.Documents),
			sum.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}

	return renderTable(sessionColumns, rows), nil
}
