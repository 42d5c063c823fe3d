// Package journal persists which task manifests have already been
// collected and reported during a run, so a resumed workflow does not
// report the same file locations twice.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketManifests = []byte("manifests")
	bucketSessions  = []byte("sessions")
)

// Entry records one collected manifest.
type Entry struct {
	Task        string    `json:"task"`
	Manifest    string    `json:"manifest"`
	Records     int       `json:"records"`
	CollectedAt time.Time `json:"collectedAt"`
}

// Journal is a bolt-backed record of collection progress, keyed by task
// name.
type Journal struct {
	db      *bolt.DB
	session string
}

// Open opens or creates the journal file and starts a new session.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	session := uuid.New().String()
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketManifests, bucketSessions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		started, _ := time.Now().MarshalText()
		return tx.Bucket(bucketSessions).Put([]byte(session), started)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, session: session}, nil
}

// Session returns the id of the journal session opened by Open.
func (j *Journal) Session() string {
	return j.session
}

// MarkCollected records that the task's manifest has been collected.
func (j *Journal) MarkCollected(task, manifest string, records int) error {
	entry := Entry{
		Task:        task,
		Manifest:    manifest,
		Records:     records,
		CollectedAt: time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketManifests).Put([]byte(task), data)
	})
}

// Collected reports whether the task's manifest was already collected.
func (j *Journal) Collected(task string) (bool, error) {
	var found bool
	err := j.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketManifests).Get([]byte(task)) != nil
		return nil
	})
	return found, err
}

// Entries returns all collected manifests.
func (j *Journal) Entries() ([]*Entry, error) {
	var entries []*Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketManifests).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, &e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	return j.db.Close()
}
