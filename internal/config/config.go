package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDriver       = "pcsc"
	DefaultPollInterval = 300 * time.Millisecond
	DefaultLogLevel     = "warn"

	// JournalOff disables the card journal when used as JCSTORAGE_JOURNAL.
	JournalOff = "off"

	// DeselectSettle is the wait after every deselect.
	DeselectSettle = 100 * time.Millisecond
	// OpenSettle is the wait after the reader session was opened.
	OpenSettle = 500 * time.Millisecond
)

// Drivers lists the accepted reader driver names.
var Drivers = []string{"pcsc", "ufcoder", "sim"}

// Config holds the application configuration.
type Config struct {
	Driver       string
	Reader       string
	PollInterval time.Duration
	Listen       string // event feed address, empty when disabled
	JournalPath  string // empty when disabled
	LogLevel     string
	LogFile      string
}

// Load reads configuration from environment variables with sensible defaults.
// Invalid values are ignored.
func Load() *Config {
	cfg := &Config{
		Driver:       DefaultDriver,
		PollInterval: DefaultPollInterval,
		JournalPath:  DefaultJournalPath(),
		LogLevel:     DefaultLogLevel,
	}

	// JCSTORAGE_DRIVER - reader driver (pcsc, ufcoder, sim)
	if driver := strings.ToLower(os.Getenv("JCSTORAGE_DRIVER")); ValidDriver(driver) {
		cfg.Driver = driver
	}

	// JCSTORAGE_READER - PC/SC reader name or a part of it
	cfg.Reader = os.Getenv("JCSTORAGE_READER")

	// JCSTORAGE_POLL_INTERVAL - delay between card polls, e.g. "300ms"
	if s := os.Getenv("JCSTORAGE_POLL_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}

	// JCSTORAGE_LISTEN - enable the event feed on host:port
	if addr := os.Getenv("JCSTORAGE_LISTEN"); ValidAddress(addr) {
		cfg.Listen = addr
	}

	// JCSTORAGE_JOURNAL - card journal file, "off" disables it
	if path, ok := os.LookupEnv("JCSTORAGE_JOURNAL"); ok && path != "" {
		cfg.JournalPath = JournalPath(path)
	}

	if level := os.Getenv("JCSTORAGE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	cfg.LogFile = os.Getenv("JCSTORAGE_LOG_FILE")

	return cfg
}

// ValidDriver reports whether name is one of Drivers.
func ValidDriver(name string) bool {
	for _, d := range Drivers {
		if d == name {
			return true
		}
	}
	return false
}

// ValidAddress reports whether addr is a host:port pair with a usable port.
func ValidAddress(addr string) bool {
	if addr == "" {
		return false
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	port, err := strconv.Atoi(portStr)
	return err == nil && port > 0 && port < 65536
}

// JournalPath maps the "off" keyword to an empty path.
func JournalPath(path string) string {
	if strings.EqualFold(path, JournalOff) {
		return ""
	}
	return path
}

// DefaultJournalPath returns <user config dir>/jcstorage/journal.db, or an
// empty path when the platform has no config directory.
func DefaultJournalPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "jcstorage", "journal.db")
}
