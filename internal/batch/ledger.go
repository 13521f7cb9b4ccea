// internal/batch/ledger.go - Durable pending-retry ledger
package batch

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/valpere/aoi_to_mbtiles/internal"
	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

var pendingBucket = []byte("pending")

// ledgerRecord is the stored value of a pending tile
type ledgerRecord struct {
	Row      string    `json:"row"`
	Outcome  string    `json:"outcome"`
	Attempts int       `json:"attempts"`
	Err      string    `json:"err,omitempty"`
	Updated  time.Time `json:"updated"`
}

// Ledger is a bbolt-backed PendingStore. Keys sort by zoom, row, column.
type Ledger struct {
	db   *bolt.DB
	path string
}

// OpenLedger opens or creates the ledger file at path
func OpenLedger(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("cannot open ledger %s", path), err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pendingBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, internal.NewError(internal.ErrorCodeStorage, "cannot initialize ledger", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// Path returns the ledger file path
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the ledger file
func (l *Ledger) Close() error {
	return l.db.Close()
}

// encodeKey packs a tile address as z(1) y(4) x(4), big-endian
func encodeKey(addr tilemath.TileAddress) []byte {
	key := make([]byte, 9)
	key[0] = byte(addr.Z)
	binary.BigEndian.PutUint32(key[1:5], uint32(addr.Y))
	binary.BigEndian.PutUint32(key[5:9], uint32(addr.X))
	return key
}

// MarkPending records a failed attempt, counting repeated failures
func (l *Ledger) MarkPending(entry manifest.Entry, outcome tile.Outcome, cause error) error {
	key := encodeKey(entry.Tile)

	err := l.db.Batch(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket)

		rec := ledgerRecord{Row: entry.Row(), Outcome: outcome.String(), Updated: time.Now().UTC()}
		if cause != nil {
			rec.Err = cause.Error()
		}
		if existing := b.Get(key); existing != nil {
			var prev ledgerRecord
			if err := json.Unmarshal(existing, &prev); err == nil {
				rec.Attempts = prev.Attempts
			}
		}
		rec.Attempts++

		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
	if err != nil {
		return internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("cannot record pending tile %s", entry.Tile), err)
	}
	return nil
}

// Resolve drops a tile from the ledger; resolving an absent tile is a no-op
func (l *Ledger) Resolve(addr tilemath.TileAddress) error {
	err := l.db.Batch(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).Delete(encodeKey(addr))
	})
	if err != nil {
		return internal.NewError(internal.ErrorCodeStorage, fmt.Sprintf("cannot resolve tile %s", addr), err)
	}
	return nil
}

// Pending returns every pending tile ordered by zoom, row, column
func (l *Ledger) Pending() ([]PendingRecord, error) {
	var records []PendingRecord

	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).ForEach(func(k, v []byte) error {
			var rec ledgerRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt ledger record: %w", err)
			}
			entry, err := manifest.ParseRow(rec.Row)
			if err != nil {
				return fmt.Errorf("corrupt ledger row: %w", err)
			}
			outcome, _ := tile.ParseOutcome(rec.Outcome)

			records = append(records, PendingRecord{
				Entry:    entry,
				Outcome:  outcome,
				Attempts: rec.Attempts,
				Err:      rec.Err,
			})
			return nil
		})
	})
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeStorage, "cannot read ledger", err)
	}
	return records, nil
}

// Count returns the number of pending tiles
func (l *Ledger) Count() (int, error) {
	var n int
	err := l.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(pendingBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, internal.NewError(internal.ErrorCodeStorage, "cannot read ledger", err)
	}
	return n, nil
}

// Reset removes every pending tile
func (l *Ledger) Reset() error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(pendingBucket) != nil {
			if err := tx.DeleteBucket(pendingBucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(pendingBucket)
		return err
	})
	if err != nil {
		return internal.NewError(internal.ErrorCodeStorage, "cannot reset ledger", err)
	}
	return nil
}

// Entries returns the manifest entries of pending records
func Entries(records []PendingRecord) []manifest.Entry {
	entries := make([]manifest.Entry, len(records))
	for i, rec := range records {
		entries[i] = rec.Entry
	}
	return entries
}
