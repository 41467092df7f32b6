// Package history persists a summary of finished runs, so the bot can show
// what it recently did and for whom.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var buckets = struct {
	Metadata []byte
	Runs     []byte
}{
	Metadata: []byte("__metadata__"),
	Runs:     []byte("runs"),
}

var versionKey = []byte("version")

const currentVersion = 1

// Record is one finished run. Receipts are kept verbatim so old links can
// be re-shown even after the scratch files are long gone.
type Record struct {
	RunID      string    `json:"run_id"`
	ChatID     int64     `json:"chat_id"`
	SourceURL  string    `json:"source_url"`
	Mode       string    `json:"mode"`
	Discovered int       `json:"discovered"`
	Processed  int       `json:"processed"`
	Containers int       `json:"containers"`
	Receipts   []string  `json:"receipts,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(buckets.Metadata)
		if err != nil {
			return err
		}
		if v := metadata.Get(versionKey); v != nil && binary.BigEndian.Uint64(v) != currentVersion {
			return fmt.Errorf("unsupported history database version")
		}
		version := make([]byte, 8)
		binary.BigEndian.PutUint64(version, currentVersion)
		if err := metadata.Put(versionKey, version); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(buckets.Runs)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores a record under a monotonically increasing key, so Recent
// can walk backwards in insertion order.
func (s *Store) Append(r Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(buckets.Runs)
		seq, err := runs.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		value, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return runs.Put(key, value)
	})
}

// Recent returns up to n records, newest first. Pass chatID 0 for all chats.
func (s *Store) Recent(chatID int64, n int) ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(buckets.Runs).Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if chatID != 0 && r.ChatID != chatID {
				continue
			}
			records = append(records, r)
		}
		return nil
	})
	return records, err
}
