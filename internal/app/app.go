// Package app runs the interactive demo loop: it polls the reader for cards
// while no key is pending and dispatches menu keys.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/SimplyPrint/jcstorage-demo/internal/config"
	"github.com/SimplyPrint/jcstorage-demo/internal/console"
	"github.com/SimplyPrint/jcstorage-demo/internal/core"
	"github.com/SimplyPrint/jcstorage-demo/internal/jcstorage"
	"github.com/SimplyPrint/jcstorage-demo/internal/journal"
	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
	"github.com/SimplyPrint/jcstorage-demo/internal/presence"
)

// Event types published to Events.
const (
	EventCardArrived  = "card_arrived"
	EventCardRemoved  = "card_removed"
	EventOperation    = "operation"
	EventStorageCheck = "storage_check"
)

// Driver is the part of the reader driver the demo uses.
type Driver interface {
	presence.Poller
	jcstorage.Transport
	GetCardType(sak byte) (core.CardType, error)
}

// KeySource is a non-blocking keyboard.
type KeySource interface {
	Pending() (bool, error)
	ReadKey() (byte, error)
}

// Events receives card and command events.
type Events interface {
	Publish(eventType, session string, payload any)
}

// Journal records the cards seen.
type Journal interface {
	Record(id core.CardIdentity, cardType core.CardType, at time.Time) (journal.Sighting, error)
	MarkStorage(uid string, storage bool) error
}

// Options configure a Demo. Zero values select the defaults.
type Options struct {
	Out          io.Writer
	PollInterval time.Duration
	Settle       time.Duration
	Session      string
	Events       Events
	Journal      Journal
	Sleep        func(time.Duration)
	Now          func() time.Time
}

// Demo is one interactive session on an open reader.
type Demo struct {
	driver   Driver
	keys     KeySource
	opts     Options
	tracker  *presence.Tracker
	selector *jcstorage.Selector
}

func New(driver Driver, keys KeySource, opts Options) *Demo {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}
	if opts.Settle <= 0 {
		opts.Settle = config.DeselectSettle
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Demo{
		driver:   driver,
		keys:     keys,
		opts:     opts,
		selector: jcstorage.NewSelector(driver, opts.Out, opts.Settle),
	}
	d.tracker = presence.NewTracker(driver, presence.Handlers{
		OnArrival: d.cardArrived,
		OnRemoval: d.cardRemoved,
	})
	return d
}

// Tracker returns the presence tracker of the session.
func (d *Demo) Tracker() *presence.Tracker { return d.tracker }

// Tick runs one step of the loop. Without a pending key it polls the reader
// once and sleeps the poll interval; otherwise it reads and dispatches the
// key. quit is true after Escape. A non-nil error ends the session.
func (d *Demo) Tick() (quit bool, err error) {
	pending, err := d.keys.Pending()
	if err != nil {
		return false, fmt.Errorf("keyboard: %w", err)
	}
	if !pending {
		if _, err := d.tracker.Poll(); err != nil {
			fmt.Fprintf(d.opts.Out, " Fatal error while trying to read card, status is: %s\n", core.StatusOf(err))
			return false, err
		}
		d.opts.Sleep(d.opts.PollInterval)
		return false, nil
	}

	key, err := d.keys.ReadKey()
	if err != nil {
		return false, fmt.Errorf("keyboard: %w", err)
	}
	return d.Dispatch(key), nil
}

// Run ticks until Escape, a fatal error or ctx is done.
func (d *Demo) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		quit, err := d.Tick()
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Dispatch runs the command bound to key and reports whether it was Escape.
func (d *Demo) Dispatch(key byte) bool {
	switch key {
	case '1':
		d.runOperation(jcstorage.OpWrite)
	case '2':
		d.runOperation(jcstorage.OpFastRead)
	case '3':
		d.runOperation(jcstorage.OpRead)
	case '4':
		d.checkStorage()
	case console.KeyEscape:
		return true
	default:
		console.Usage(d.opts.Out)
	}
	return false
}

func (d *Demo) runOperation(op jcstorage.Operation) {
	err := d.selector.Run(op)
	payload := map[string]any{"operation": op.String(), "ok": err == nil}
	if err != nil {
		payload["status"] = core.StatusOf(err).String()
		logging.Debug(logging.CatCard, "Operation failed", map[string]any{"operation": op.String(), "error": err.Error()})
	}
	d.publish(EventOperation, payload)
}

func (d *Demo) checkStorage() {
	check, err := d.selector.CheckStorageType()
	payload := map[string]any{
		"is_storage": check.IsStorage,
		"elapsed_s":  check.Elapsed,
	}
	if err != nil {
		payload["status"] = core.StatusOf(err).String()
		d.publish(EventStorageCheck, payload)
		return
	}
	payload["sw"] = core.FormatHex(check.SW[:], "")

	if id, ok := d.tracker.Current(); ok {
		uid := core.FormatHex(id.UIDBytes(), "")
		payload["uid"] = id.UIDString()
		if d.opts.Journal != nil {
			if err := d.opts.Journal.MarkStorage(uid, check.IsStorage); err != nil {
				logging.Warn(logging.CatCard, "Failed to update card journal", map[string]any{"uid": uid, "error": err.Error()})
			}
		}
	}
	d.publish(EventStorageCheck, payload)
}

// cardArrived prints the card banner. A failed type query is returned to the
// tracker and nothing is printed.
func (d *Demo) cardArrived(id core.CardIdentity) error {
	cardType, err := d.driver.GetCardType(id.SAK)
	if err != nil {
		return err
	}

	out := d.opts.Out
	fmt.Fprintln(out, " \a-------------------------------------------------------------------")
	fmt.Fprintf(out, " Card type: %s, sak = 0x%02X, uid[%d] = %s\n", cardType, id.SAK, id.UIDLength, id.UIDString())
	fmt.Fprintln(out, " -------------------------------------------------------------------")

	logging.Info(logging.CatCard, "Card arrived", map[string]any{
		"uid":  id.UIDString(),
		"sak":  fmt.Sprintf("0x%02X", id.SAK),
		"type": cardType.String(),
	})

	payload := map[string]any{
		"uid":  id.UIDString(),
		"sak":  id.SAK,
		"type": cardType.String(),
	}
	if d.opts.Journal != nil {
		s, err := d.opts.Journal.Record(id, cardType, d.opts.Now())
		if err != nil {
			logging.Warn(logging.CatCard, "Failed to record card", map[string]any{"uid": id.UIDString(), "error": err.Error()})
		} else {
			payload["count"] = s.Count
		}
	}
	d.publish(EventCardArrived, payload)
	return nil
}

func (d *Demo) cardRemoved(id core.CardIdentity) {
	logging.Info(logging.CatCard, "Card removed", map[string]any{"uid": id.UIDString()})
	d.publish(EventCardRemoved, map[string]any{"uid": id.UIDString()})
}

func (d *Demo) publish(eventType string, payload any) {
	if d.opts.Events != nil {
		d.opts.Events.Publish(eventType, d.opts.Session, payload)
	}
}
