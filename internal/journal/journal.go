// Package journal keeps a small on-disk history of the cards seen by the
// reader.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/SimplyPrint/jcstorage-demo/internal/core"
)

// Memory opens a journal that is not persisted.
const Memory = ":memory:"

const indexLastSeen = "last_seen_unix"

// Sighting is one card in the history.
type Sighting struct {
	UID       string    `json:"uid"`
	SAK       byte      `json:"sak"`
	Type      string    `json:"type"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int       `json:"count"`
	Storage   bool      `json:"storage,omitempty"`

	// LastSeenUnix orders the history; RFC 3339 strings do not sort.
	LastSeenUnix int64 `json:"last_seen_unix"`
}

// Journal is a buntdb backed card history.
type Journal struct {
	db *buntdb.DB
}

// Open opens or creates the journal at path. Memory opens an in-memory one.
func Open(path string) (*Journal, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.CreateIndex(indexLastSeen, "card:*", buntdb.IndexJSON(indexLastSeen)); err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
		db.Close()
		return nil, fmt.Errorf("create journal index: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func cardKey(uid string) string {
	return fmt.Sprintf("card:%s", uid)
}

// Record adds an arrival of id at the given time and returns the updated
// sighting.
func (j *Journal) Record(id core.CardIdentity, cardType core.CardType, at time.Time) (Sighting, error) {
	uid := core.FormatHex(id.UIDBytes(), "")
	var s Sighting
	err := j.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(cardKey(uid))
		switch {
		case err == nil:
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return err
			}
		case errors.Is(err, buntdb.ErrNotFound):
			s = Sighting{UID: uid, FirstSeen: at}
		default:
			return err
		}

		s.SAK = id.SAK
		s.Type = cardType.String()
		s.LastSeen = at
		s.LastSeenUnix = at.UnixNano()
		s.Count++

		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(cardKey(uid), string(data), nil)
		return err
	})
	if err != nil {
		return Sighting{}, fmt.Errorf("record card %s: %w", uid, err)
	}
	return s, nil
}

// MarkStorage records the result of a storage type check for a card that was
// already recorded.
func (j *Journal) MarkStorage(uid string, storage bool) error {
	return j.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(cardKey(uid))
		if err != nil {
			return fmt.Errorf("card %s: %w", uid, err)
		}
		var s Sighting
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return err
		}
		s.Storage = storage
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(cardKey(uid), string(data), nil)
		return err
	})
}

// Get returns the sighting of one card.
func (j *Journal) Get(uid string) (Sighting, error) {
	var s Sighting
	err := j.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(cardKey(uid))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &s)
	})
	return s, err
}

// All returns every sighting, most recently seen first.
func (j *Journal) All() ([]Sighting, error) {
	out := []Sighting{}
	var decodeErr error
	err := j.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend(indexLastSeen, func(key, value string) bool {
			var s Sighting
			if err := json.Unmarshal([]byte(value), &s); err != nil {
				decodeErr = fmt.Errorf("%s: %w", key, err)
				return false
			}
			out = append(out, s)
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return out, decodeErr
}
