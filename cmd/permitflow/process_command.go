package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"permitflow/internal/browser"
	"permitflow/internal/fetch"
	"permitflow/internal/logging"
	"permitflow/internal/notifications"
	"permitflow/internal/pipeline"
	"permitflow/internal/session"
)

// newProcessCommand runs the whole pipeline once for one operator: fetch the
// window, classify, generate, then tear the session down.
func newProcessCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		userID   string
		start    int64
		end      int64
		district string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Fetch, classify, and generate certificates for a pass-number window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if start <= 0 || end < start {
				return fmt.Errorf("--start and --end must describe a valid pass-number window")
			}

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := session.Open(cfg, logger)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer func() { _ = store.Close() }()

			launcher := browser.NewLauncher(cfg)
			defer launcher.Close()

			fetcher := fetch.NewPortalFetcher(cfg, lookupOpener{launcher}, logger)
			coord, err := pipeline.NewCoordinator(cfg, store, launcher, fetcher, notifications.NewService(cfg), logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink := consoleSink(cmd.OutOrStdout())
			if err := coord.Fetch(ctx, userID, start, end, district, sink); err != nil {
				return err
			}
			if err := coord.Process(ctx, userID, sink); err != nil {
				return err
			}
			if err := coord.Generate(ctx, userID, sink); err != nil {
				return err
			}

			if sess, ok := store.Get(userID); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "certificates staged under %s\n", sess.PDFDir)
				fmt.Fprintln(cmd.OutOrStdout(), "the session stays staged until `permitflow serve` sweeps it; remove it with `exit` in the console")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "operator", "Session user id")
	cmd.Flags().Int64Var(&start, "start", 0, "First pass number in the window")
	cmd.Flags().Int64Var(&end, "end", 0, "Last pass number in the window")
	cmd.Flags().StringVarP(&district, "district", "d", "", "Destination district filter")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}
