package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/SimplyPrint/jcstorage-demo/internal/api"
	"github.com/SimplyPrint/jcstorage-demo/internal/app"
	"github.com/SimplyPrint/jcstorage-demo/internal/config"
	"github.com/SimplyPrint/jcstorage-demo/internal/console"
	"github.com/SimplyPrint/jcstorage-demo/internal/core"
	"github.com/SimplyPrint/jcstorage-demo/internal/data"
	"github.com/SimplyPrint/jcstorage-demo/internal/depcheck"
	"github.com/SimplyPrint/jcstorage-demo/internal/jcstorage"
	"github.com/SimplyPrint/jcstorage-demo/internal/journal"
	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
)

func main() {
	c := newCLI(config.Load())
	command := kingpin.MustParse(c.app.Parse(os.Args[1:]))

	closeLog, err := setupLogging(c.logLevel, c.logFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var code int
	switch command {
	case c.run.FullCommand():
		code = runDemo(c, os.Stdout)
	case c.readers.FullCommand():
		code = listReaders(os.Stdout)
	case c.history.FullCommand():
		code = showHistory(c.journal, os.Stdout)
	default:
		kingpin.FatalUsage("Unrecognized command")
	}
	closeLog()
	os.Exit(code)
}

func versionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", api.Version, api.GitCommit, api.BuildTime)
}

// setupLogging routes log entries to stderr or the given file.
func setupLogging(levelName, file string) (func(), error) {
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		level = logging.LevelWarn
	}

	var w io.Writer = os.Stderr
	closer := func() {}
	if file != "" {
		f, ferr := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if ferr != nil {
			return nil, fmt.Errorf("open log file: %w", ferr)
		}
		w = f
		closer = func() { f.Close() }
	}

	logger := logging.Get()
	logger.SetSink(logging.NewSink(w))
	logger.SetMinLevel(level)
	if err != nil {
		logging.Warn(logging.CatSystem, "Invalid log level, using warn", map[string]any{"level": levelName})
	}
	return closer, nil
}

func runDemo(c *cli, out io.Writer) int {
	session := uuid.NewString()
	logging.Info(logging.CatSystem, "Starting session", map[string]any{
		"session": session,
		"driver":  c.driver,
		"version": api.Version,
	})

	console.Usage(out)
	console.Opening(out)

	driver, err := core.NewDriver(c.driver, core.DriverOptions{
		Reader: c.reader,
		Sim:    core.SimOptions{Card: core.DefaultSimCard(jcstorage.AID)},
	})
	if err == nil {
		err = driver.Open()
	}
	if err != nil {
		fmt.Fprintf(out, "Error while opening device, status is: %s\n", core.StatusOf(err))
		logging.Error(logging.CatReader, "Failed to open reader", map[string]any{"error": err.Error()})
		return 1
	}
	driver.Deselect(config.DeselectSettle)
	time.Sleep(config.OpenSettle)

	report, err := depcheck.Check(driver, c.policy(driver.Name()))
	for _, qe := range report.QueryErrors {
		fmt.Fprintln(out, qe.Error())
	}
	if err != nil {
		fmt.Fprintln(out, err)
		driver.Close()
		return 1
	}
	console.Opened(out)

	var history *journal.Journal
	if c.journal != "" {
		history, err = openJournal(c.journal)
		if err != nil {
			logging.Warn(logging.CatSystem, "Card journal disabled", map[string]any{"error": err.Error()})
		} else {
			defer history.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.Options{
		Out:          out,
		PollInterval: c.poll,
		Settle:       config.DeselectSettle,
		Session:      session,
	}
	if history != nil {
		opts.Journal = history
	}
	if c.listen != "" {
		hub := api.NewWSHub()
		go hub.Run()
		var h api.History
		if history != nil {
			h = history
		}
		srv := api.NewServer(c.listen, session, hub, h)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				logging.Error(logging.CatEvents, "Event server stopped", map[string]any{"error": err.Error()})
			}
		}()
		opts.Events = hub
	}

	kb, err := console.Open(os.Stdin)
	if err != nil {
		fmt.Fprintln(out, err)
		driver.Close()
		return 1
	}

	runErr := app.New(driver, kb, opts).Run(ctx)

	if err := driver.Close(); err != nil {
		logging.Warn(logging.CatReader, "Failed to close reader", map[string]any{"error": err.Error()})
	}
	if err := kb.Close(); err != nil {
		logging.Warn(logging.CatSystem, "Failed to restore terminal", map[string]any{"error": err.Error()})
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logging.Error(logging.CatSystem, "Session ended", map[string]any{"error": runErr.Error()})
		return 1
	}
	return 0
}

func openJournal(path string) (*journal.Journal, error) {
	if path != journal.Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	return journal.Open(path)
}

func listReaders(out io.Writer) int {
	readers := core.ListReaders()
	if len(readers) == 0 {
		fmt.Fprintln(out, "No readers found.")
		return 1
	}
	for _, r := range readers {
		fmt.Fprintf(out, "%-10s %-5s %s\n", r.ID, r.Type, r.Name)
		if known, ok := data.Lookup(r.Name); ok {
			fmt.Fprintf(out, "%-16s known reader: %s (%s)\n", "", known.Name, strings.Join(known.Drivers, ", "))
			for _, l := range known.Limitations {
				fmt.Fprintf(out, "%-16s - %s\n", "", l)
			}
		}
	}
	return 0
}

func showHistory(path string, out io.Writer) int {
	if path == "" {
		fmt.Fprintln(out, "The card journal is disabled.")
		return 1
	}
	j, err := journal.Open(path)
	if err != nil {
		fmt.Fprintln(out, err)
		return 1
	}
	defer j.Close()

	all, err := j.All()
	if err != nil {
		fmt.Fprintln(out, err)
		return 1
	}
	if len(all) == 0 {
		fmt.Fprintln(out, "No cards recorded yet.")
		return 0
	}
	fmt.Fprintln(out, " UID                  │ SAK  │ Type                      │ Seen │ Storage │ Last seen")
	fmt.Fprintln(out, "──────────────────────┼──────┼───────────────────────────┼──────┼─────────┼─────────────────────")
	for _, s := range all {
		storage := "no"
		if s.Storage {
			storage = "yes"
		}
		fmt.Fprintf(out, " %-20s │ 0x%02X │ %-25s │ %4d │ %-7s │ %s\n",
			s.UID, s.SAK, s.Type, s.Count, storage, s.LastSeen.Local().Format(time.DateTime))
	}
	return 0
}
