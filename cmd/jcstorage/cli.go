package main

import (
	"strconv"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/SimplyPrint/jcstorage-demo/internal/config"
	"github.com/SimplyPrint/jcstorage-demo/internal/depcheck"
)

// optionalBool is a boolean flag that remembers whether it was given.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *optionalBool) String() string { return strconv.FormatBool(b.value) }

func (b *optionalBool) IsBoolFlag() bool { return true }

type cli struct {
	app     *kingpin.Application
	run     *kingpin.CmdClause
	readers *kingpin.CmdClause
	history *kingpin.CmdClause

	driver   string
	reader   string
	poll     time.Duration
	listen   string
	journal  string
	logLevel string
	logFile  string

	enforceLibrary  optionalBool
	enforceFirmware optionalBool
	minLibrary      depcheck.Triple
	minFirmware     depcheck.Triple
}

// newCLI declares the command line. Flag defaults come from cfg, so flags
// override the environment.
func newCLI(cfg *config.Config) *cli {
	c := &cli{
		minLibrary:  depcheck.MinLibrary,
		minFirmware: depcheck.MinFirmware,
	}
	c.app = kingpin.New("jcstorage", "DL JC Storage card example for uFR and PC/SC contactless readers.")
	c.app.Version(versionString())
	c.app.HelpFlag.Short('h')

	c.app.Flag("log-level", "Log level (debug, info, warn, error).").
		Default(cfg.LogLevel).StringVar(&c.logLevel)
	c.app.Flag("log-file", "Write logs to this file instead of stderr.").
		Default(cfg.LogFile).StringVar(&c.logFile)
	c.app.Flag("journal", `Card journal file, "off" to disable.`).
		Default(journalDefault(cfg.JournalPath)).StringVar(&c.journal)

	c.run = c.app.Command("run", "Open the reader and start the interactive example.").Default()
	c.run.Flag("driver", "Reader driver.").Short('d').
		Default(cfg.Driver).EnumVar(&c.driver, config.Drivers...)
	c.run.Flag("reader", "PC/SC reader name or a part of it.").
		Default(cfg.Reader).StringVar(&c.reader)
	c.run.Flag("poll", "Delay between card polls.").
		Default(cfg.PollInterval.String()).DurationVar(&c.poll)
	c.run.Flag("listen", "Serve the card event feed on this address.").
		Default(cfg.Listen).StringVar(&c.listen)
	c.run.Flag("enforce-library", "Refuse to run with an outdated uFCoder library.").
		SetValue(&c.enforceLibrary)
	c.run.Flag("enforce-firmware", "Refuse to run with an outdated reader firmware.").
		SetValue(&c.enforceFirmware)
	c.run.Flag("min-library", "Minimum uFCoder library version.").
		Default(depcheck.MinLibrary.String()).SetValue(&c.minLibrary)
	c.run.Flag("min-firmware", "Minimum reader firmware version.").
		Default(depcheck.MinFirmware.String()).SetValue(&c.minFirmware)

	c.readers = c.app.Command("readers", "List the PC/SC readers.")
	c.history = c.app.Command("history", "Show the cards recorded in the journal.")

	c.app.PreAction(func(*kingpin.ParseContext) error {
		c.journal = config.JournalPath(c.journal)
		return nil
	})
	return c
}

func journalDefault(path string) string {
	if path == "" {
		return config.JournalOff
	}
	return path
}

// policy returns the version policy for driver with the command line
// overrides applied.
func (c *cli) policy(driver string) depcheck.Policy {
	p := depcheck.DefaultPolicy(driver)
	p.Library.Minimum = c.minLibrary
	p.Firmware.Minimum = c.minFirmware
	if c.enforceLibrary.set {
		p.Library.Enforce = c.enforceLibrary.value
	}
	if c.enforceFirmware.set {
		p.Firmware.Enforce = c.enforceFirmware.value
	}
	return p
}
