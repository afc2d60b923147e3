// Package store persists finalized evaluation results in BadgerDB and
// answers "most recent record per (name, type, provider, model)" queries.
// Records are append-only: nothing is ever mutated or removed, and every
// append writes a fresh key, so concurrent appends never race.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/datar-psa/evalharness/api"
)

const keyPrefix = "result/"

// Options configures a result store.
type Options struct {
	// Path is the directory for the database files; required unless InMemory
	Path string
	// InMemory keeps everything in memory, for tests
	InMemory bool
	// SyncWrites makes appends durable before returning
	SyncWrites bool
	// Logger receives append/query logging; nil disables logging
	Logger *slog.Logger
}

// Store is a BadgerDB-backed result store. Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open creates or opens a result store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, fmt.Errorf("store path is required for a persistent database")
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", opts.Path, err)
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites).WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// recordKey builds the storage key for one record. Fields are path-escaped
// and the timestamp is zero-padded unix nanoseconds, so lexicographic key
// order within a series equals temporal order. The record ID keeps keys
// unique even for identical timestamps.
func recordKey(r api.ResultRecord) []byte {
	return []byte(seriesPrefix(r.Key()) + fmt.Sprintf("%020d/%s", r.Timestamp.UnixNano(), r.ID))
}

func seriesPrefix(k api.ResultKey) string {
	return keyPrefix +
		url.PathEscape(k.Name) + "/" +
		url.PathEscape(k.Type) + "/" +
		url.PathEscape(k.Provider) + "/" +
		url.PathEscape(k.Model) + "/"
}

// Append durably adds a finalized EvaluationData as a new ResultRecord and
// returns it. The record is assigned a fresh ID; a zero timestamp is
// finalized to the current time. Existing records are never touched.
func (s *Store) Append(data api.EvaluationData) (api.ResultRecord, error) {
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now().UTC()
	}
	record := api.ResultRecord{
		ID:             uuid.NewString(),
		EvaluationData: data,
	}

	value, err := json.Marshal(record)
	if err != nil {
		return api.ResultRecord{}, fmt.Errorf("marshal result record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(record), value)
	})
	if err != nil {
		return api.ResultRecord{}, fmt.Errorf("append result record: %w", err)
	}

	s.logger.Debug("appended result",
		"name", data.Name,
		"type", data.Type,
		"provider", data.ModelProvider,
		"model", data.ModelName,
		"has_score", data.Score != nil,
	)
	return record, nil
}

// Latest returns the record with the maximum timestamp among those matching
// the four-part key, or nil when no record matches.
func (s *Store) Latest(key api.ResultKey) (*api.ResultRecord, error) {
	var latest *api.ResultRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(seriesPrefix(key))
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			record, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			if latest == nil || record.Timestamp.After(latest.Timestamp) {
				latest = &record
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// LatestAll returns, for every distinct (name, type, provider, model) key
// ever appended, exactly the latest record. The result is ordered
// lexicographically by key so repeated calls over a fixed store state are
// stable.
func (s *Store) LatestAll() ([]api.ResultRecord, error) {
	latest := make(map[api.ResultKey]api.ResultRecord)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(keyPrefix)
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			record, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			key := record.Key()
			if current, ok := latest[key]; !ok || record.Timestamp.After(current.Timestamp) {
				latest[key] = record
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]api.ResultRecord, 0, len(latest))
	for _, record := range latest {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Key(), records[j].Key()
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.Model < b.Model
	})
	return records, nil
}

// ExecutedKeys returns the set of (name, type, provider, model) keys that
// have at least one record, used to skip already-executed pairs.
func (s *Store) ExecutedKeys() (map[api.ResultKey]struct{}, error) {
	records, err := s.LatestAll()
	if err != nil {
		return nil, err
	}
	keys := make(map[api.ResultKey]struct{}, len(records))
	for _, record := range records {
		keys[record.Key()] = struct{}{}
	}
	return keys, nil
}

func decodeItem(item *badger.Item) (api.ResultRecord, error) {
	var record api.ResultRecord
	err := item.Value(func(value []byte) error {
		return json.Unmarshal(value, &record)
	})
	if err != nil {
		return api.ResultRecord{}, fmt.Errorf("decode result record %s: %w", item.Key(), err)
	}
	return record, nil
}
