package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"permitflow/internal/browser"
	"permitflow/internal/config"
	"permitflow/internal/deps"
	"permitflow/internal/fetch"
	"permitflow/internal/logging"
	"permitflow/internal/notifications"
	"permitflow/internal/pipeline"
	"permitflow/internal/progress"
	"permitflow/internal/session"
)

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline service with the line-oriented console transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "permitflow.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another permitflow instance is already running")
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	if missing := deps.MissingRequired(deps.CheckBinaries(deps.Default(cfg))); len(missing) > 0 {
		return fmt.Errorf("missing required dependencies: %s (run `permitflow deps`)", strings.Join(missing, ", "))
	}

	store, err := session.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() { _ = store.Close() }()

	launcher := browser.NewLauncher(cfg)
	defer launcher.Close()

	notifier := notifications.NewService(cfg)
	fetcher := fetch.NewPortalFetcher(cfg, lookupOpener{launcher}, logger)
	coord, err := pipeline.NewCoordinator(cfg, store, launcher, fetcher, notifier, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runSweeper(ctx, cfg, store)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "permitflow serving; commands: fetch <user> <start> <end> <district> | process <user> | generate <user> | cancel <user> | exit <user> | sessions | quit")
	logger.Info("service started")

	err = runConsole(ctx, coord, store, cmd.InOrStdin(), out)
	logger.Info("service stopped")
	return err
}

// lookupOpener adapts the shared launcher to the fetcher's page opener: one
// dedicated tab tree per lookup, closed by the fetcher when done.
type lookupOpener struct {
	launcher *browser.Launcher
}

func (o lookupOpener) OpenLookup(ctx context.Context, url string) (fetch.LookupPage, error) {
	sess := o.launcher.NewSession()
	if err := sess.Navigate(ctx, url); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func runSweeper(ctx context.Context, cfg *config.Config, store *session.Store) {
	interval := time.Duration(cfg.Sessions.SweepInterval) * time.Second
	maxAge := time.Duration(cfg.Sessions.MaxAgeHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep(ctx, maxAge)
		}
	}
}

// runConsole reads one command per line until EOF or cancellation. Pipeline
// runs execute in their own goroutine per session so independent users
// proceed in parallel.
func runConsole(ctx context.Context, coord *pipeline.Coordinator, store *session.Store, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sink := consoleSink(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return scanner.Err()
			}
			if quit := dispatch(ctx, coord, store, sink, out, line); quit {
				return nil
			}
		}
	}
}

func dispatch(ctx context.Context, coord *pipeline.Coordinator, store *session.Store, sink progress.Sink, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	report := func(err error) {
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}

	switch fields[0] {
	case "quit":
		return true
	case "sessions":
		summary, err := sessionsTable(ctx, store)
		if err != nil {
			report(err)
			return false
		}
		fmt.Fprintln(out, summary)
	case "fetch":
		if len(fields) < 5 {
			fmt.Fprintln(out, "usage: fetch <user> <start> <end> <district>")
			return false
		}
		userID := fields[1]
		start, err1 := strconv.ParseInt(fields[2], 10, 64)
		end, err2 := strconv.ParseInt(fields[3], 10, 64)
		if err1 != nil || err2 != nil || end < start {
			fmt.Fprintln(out, "usage: fetch <user> <start> <end> <district> (start and end are pass numbers)")
			return false
		}
		district := strings.Join(fields[4:], " ")
		go func() { report(coord.Fetch(ctx, userID, start, end, district, sink)) }()
	case "process":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: process <user>")
			return false
		}
		userID := fields[1]
		go func() { report(coord.Process(ctx, userID, sink)) }()
	case "generate":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: generate <user>")
			return false
		}
		userID := fields[1]
		go func() { report(coord.Generate(ctx, userID, sink)) }()
	case "cancel":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: cancel <user>")
			return false
		}
		coord.Cancel(fields[1])
	case "exit":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: exit <user>")
			return false
		}
		report(coord.Exit(ctx, fields[1]))
	default:
		fmt.Fprintf(out, "unknown command %q\n", fields[0])
	}
	return false
}
