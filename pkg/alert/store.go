package alert

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/boltdb/bolt"
)

// Store persists the alerts of the last cycle.
type Store interface {
	Load() ([]Alert, error)
	Save(alerts []Alert) error
	Close() error
}

// MemoryStore forgets everything when the process exits.
type MemoryStore struct {
	mu     sync.Mutex
	alerts []Alert
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...), nil
}

func (s *MemoryStore) Save(alerts []Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append([]Alert(nil), alerts...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var (
	alertsBucket = []byte("alerts")
	previousKey  = []byte("previous")
)

// BoltStore keeps the previous alerts in a bolt file so a restart does not
// re-announce everything.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(alertsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load() ([]Alert, error) {
	var alerts []Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(alertsBucket).Get(previousKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &alerts)
	})
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *BoltStore) Save(alerts []Alert) error {
	data, err := json.Marshal(alerts)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(alertsBucket).Put(previousKey, data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
