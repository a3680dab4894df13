// Package presence tracks which card is in the reader field from one poll to
// the next.
package presence

import (
	"fmt"

	"github.com/SimplyPrint/jcstorage-demo/internal/core"
	"github.com/SimplyPrint/jcstorage-demo/internal/logging"
)

// State is the tracker state.
type State int

const (
	NoCard State = iota
	CardPresent
)

func (s State) String() string {
	if s == CardPresent {
		return "card present"
	}
	return "no card"
}

// Event is what a single poll produced.
type Event int

const (
	EventNone Event = iota
	EventArrived
	EventRemoved
)

func (e Event) String() string {
	switch e {
	case EventArrived:
		return "arrived"
	case EventRemoved:
		return "removed"
	default:
		return "none"
	}
}

// Poller reads the identity of the card in the field.
type Poller interface {
	PollCardID() (core.CardIdentity, error)
}

// Handlers are called from Poll.
type Handlers struct {
	// OnArrival runs for every new card, including a swap without an
	// intervening removal. Its error is logged and does not stop polling.
	OnArrival func(core.CardIdentity) error
	// OnRemoval runs when a present card leaves the field.
	OnRemoval func(core.CardIdentity)
}

// PollError is a poll status other than OK and no card. The session cannot
// continue after it.
type PollError struct {
	Status core.Status
	Err    error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("card poll failed: %v", e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// Tracker is the card presence state machine. It is not safe for concurrent
// use.
type Tracker struct {
	poller   Poller
	handlers Handlers

	state   State
	current core.CardIdentity
}

// NewTracker returns a tracker in the NoCard state.
func NewTracker(poller Poller, handlers Handlers) *Tracker {
	return &Tracker{poller: poller, handlers: handlers}
}

// State returns the current state.
func (t *Tracker) State() State { return t.state }

// Current returns the recorded card identity while a card is present.
func (t *Tracker) Current() (core.CardIdentity, bool) {
	if t.state != CardPresent {
		return core.CardIdentity{}, false
	}
	return t.current, true
}

// Poll queries the reader once and advances the state machine.
func (t *Tracker) Poll() (Event, error) {
	id, err := t.poller.PollCardID()
	switch {
	case err == nil:
		if t.state == CardPresent && t.current.Equal(id) {
			return EventNone, nil
		}
		t.state = CardPresent
		t.current = id
		t.arrived(id)
		return EventArrived, nil

	case core.IsNoCardError(err):
		if t.state == NoCard {
			return EventNone, nil
		}
		gone := t.current
		t.state = NoCard
		t.current = core.CardIdentity{}
		if t.handlers.OnRemoval != nil {
			t.handlers.OnRemoval(gone)
		}
		return EventRemoved, nil

	default:
		return EventNone, &PollError{Status: core.StatusOf(err), Err: err}
	}
}

func (t *Tracker) arrived(id core.CardIdentity) {
	if t.handlers.OnArrival == nil {
		return
	}
	if err := t.handlers.OnArrival(id); err != nil {
		logging.Warn(logging.CatCard, "Card arrival handling failed", map[string]any{
			"card":   id.String(),
			"status": core.StatusOf(err).String(),
		})
	}
}
