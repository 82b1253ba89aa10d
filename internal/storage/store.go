package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	appsBucket    = []byte("apps")
	entriesBucket = []byte("entries")
	prefsBucket   = []byte("prefs")
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{appsBucket, entriesBucket, prefsBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// EnsureBucket returns the bucket named name, creating it when missing.
func (s *Store) EnsureBucket(name, exePath string) (*Bucket, error) {
	var out Bucket
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appsBucket)
		found := false
		err := b.ForEach(func(_ []byte, v []byte) error {
			var app Bucket
			if err := json.Unmarshal(v, &app); err != nil {
				return nil
			}
			if app.Name == name {
				out = app
				found = true
			}
			return nil
		})
		if err != nil || found {
			return err
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		out = Bucket{ID: int64(seq), Name: name, ExePath: exePath}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return b.Put(itob(out.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring bucket %q: %w", name, err)
	}
	return &out, nil
}

// GetBuckets returns all buckets with entry counts, favorites first and then
// by entry count.
func (s *Store) GetBuckets() ([]*Bucket, error) {
	var buckets []*Bucket
	err := s.db.View(func(tx *bolt.Tx) error {
		counts := make(map[int64]int)
		err := tx.Bucket(entriesBucket).ForEach(func(_ []byte, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			counts[e.BucketID]++
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket(appsBucket).ForEach(func(_ []byte, v []byte) error {
			var app Bucket
			if err := json.Unmarshal(v, &app); err != nil {
				return nil
			}
			app.EntryCount = counts[app.ID]
			buckets = append(buckets, &app)
			return nil
		})
	})
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].IsFavorite != buckets[j].IsFavorite {
			return buckets[i].IsFavorite
		}
		if buckets[i].EntryCount != buckets[j].EntryCount {
			return buckets[i].EntryCount > buckets[j].EntryCount
		}
		return buckets[i].ID < buckets[j].ID
	})
	return buckets, err
}

func (s *Store) GetBucket(id int64) (*Bucket, error) {
	var app Bucket
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(appsBucket).Get(itob(id))
		if data == nil {
			return fmt.Errorf("bucket %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &app)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ToggleBucketFavorite flips the favorite flag and returns the new value.
func (s *Store) ToggleBucketFavorite(id int64) (bool, error) {
	var result bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appsBucket)
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("bucket %d: %w", id, ErrNotFound)
		}
		var app Bucket
		if err := json.Unmarshal(data, &app); err != nil {
			return err
		}
		app.IsFavorite = !app.IsFavorite
		result = app.IsFavorite
		data, err := json.Marshal(app)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
	return result, err
}

// AddEntry assigns an ID (and a timestamp when missing) and stores e.
func (s *Store) AddEntry(e *Entry) error {
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().Format(CreatedAtLayout)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.ID = int64(seq)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(itob(e.ID), data)
	})
}

func (s *Store) GetEntry(id int64) (*Entry, error) {
	var e Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(entriesBucket).Get(itob(id))
		if data == nil {
			return fmt.Errorf("entry %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Entries returns every entry accepted by keep, favorites first and then
// newest first. A nil keep accepts all entries.
func (s *Store) Entries(keep func(*Entry) bool) ([]*Entry, error) {
	var entries []*Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(_ []byte, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			if keep == nil || keep(&e) {
				entries = append(entries, &e)
			}
			return nil
		})
	})
	SortEntries(entries, true)
	return entries, err
}

// SortEntries orders entries newest first, optionally putting favorites ahead.
func SortEntries(entries []*Entry, favoritesFirst bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if favoritesFirst && a.IsFavorite != b.IsFavorite {
			return a.IsFavorite
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID > b.ID
	})
}

func (s *Store) updateEntry(id int64, mutate func(*Entry)) (*Entry, error) {
	var e Entry
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("entry %d: %w", id, ErrNotFound)
		}
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		mutate(&e)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ToggleEntryFavorite flips the favorite flag and returns the new value.
func (s *Store) ToggleEntryFavorite(id int64) (bool, error) {
	e, err := s.updateEntry(id, func(e *Entry) { e.IsFavorite = !e.IsFavorite })
	if err != nil {
		return false, err
	}
	return e.IsFavorite, nil
}

// ToggleEntrySensitive flips the sensitive flag and returns the new value.
func (s *Store) ToggleEntrySensitive(id int64) (bool, error) {
	e, err := s.updateEntry(id, func(e *Entry) { e.IsSensitive = !e.IsSensitive })
	if err != nil {
		return false, err
	}
	return e.IsSensitive, nil
}

// DeleteEntries removes every entry accepted by match and returns them.
func (s *Store) DeleteEntries(match func(*Entry) bool) ([]*Entry, error) {
	var removed []*Entry
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		// collect first, deleting under a live cursor skips keys
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			if match(&e) {
				keys = append(keys, append([]byte(nil), k...))
				removed = append(removed, &e)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// PruneEmptyBuckets removes buckets that no longer hold entries.
func (s *Store) PruneEmptyBuckets() (int, error) {
	pruned := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		used := make(map[int64]bool)
		err := tx.Bucket(entriesBucket).ForEach(func(_ []byte, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err == nil {
				used[e.BucketID] = true
			}
			return nil
		})
		if err != nil {
			return err
		}

		apps := tx.Bucket(appsBucket)
		var empty [][]byte
		err = apps.ForEach(func(k, v []byte) error {
			var app Bucket
			if err := json.Unmarshal(v, &app); err == nil && !used[app.ID] {
				empty = append(empty, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range empty {
			if err := apps.Delete(k); err != nil {
				return err
			}
		}
		pruned = len(empty)
		return nil
	})
	return pruned, err
}

// DeleteEntry removes a single entry.
func (s *Store) DeleteEntry(id int64) (*Entry, error) {
	removed, err := s.DeleteEntries(func(e *Entry) bool { return e.ID == id })
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	return removed[0], nil
}

// GetPref returns the raw value stored under key, or nil when absent.
func (s *Store) GetPref(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(prefsBucket).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (s *Store) PutPref(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(prefsBucket).Put([]byte(key), value)
	})
}
