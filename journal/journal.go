// Package journal persists every mutating action karja dispatches so
// an operator can answer "who stopped this instance and when" after
// the fact. Storage is a small bbolt database with an in-memory btree
// index from instance id to its action history.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/karja/types"
)

// Bucket names in bbolt
var (
	bucketActions = []byte("actions")
	bucketMeta    = []byte("meta")
)

var keyLastSequence = []byte("last_sequence")

// Record is one per-instance action outcome.
type Record struct {
	Sequence   int64        `json:"sequence"`
	Timestamp  time.Time    `json:"timestamp"`
	Action     types.Action `json:"action"`
	InstanceID string       `json:"instance_id"`
	Profile    string       `json:"profile,omitempty"`
	Region     string       `json:"region,omitempty"`
	Status     string       `json:"status"`
	Detail     string       `json:"detail,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// instanceHistory tracks one instance's records in the index
type instanceHistory struct {
	InstanceID string
	Sequences  []int64
	LastAction types.Action
	LastSeen   time.Time
}

// Journal is the append-only action log.
type Journal struct {
	mu      sync.RWMutex
	db      *bbolt.DB
	index   *btree.BTreeG[*instanceHistory]
	lastSeq int64
	logger  zerolog.Logger
}

// Open creates or reopens the journal under dir.
func Open(dir string, logger zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, "journal.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketActions, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create journal buckets: %w", err)
	}

	j := &Journal{
		db: db,
		index: btree.NewG[*instanceHistory](32, func(a, b *instanceHistory) bool {
			return a.InstanceID < b.InstanceID
		}),
		logger: logger,
	}

	if err := j.loadSequence(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := j.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return j, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append writes one record and returns its sequence number.
func (j *Journal) Append(record Record) (int64, error) {
	seqs, err := j.AppendBatch([]Record{record})
	if err != nil {
		return 0, err
	}
	return seqs[0], nil
}

// AppendBatch writes one record per instance outcome atomically. Each
// record gets its own sequence so History stays per-instance even for
// a bulk action.
func (j *Journal) AppendBatch(records []Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().UTC()
	seqs := make([]int64, len(records))

	err := j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketActions)

		for i := range records {
			j.lastSeq++
			records[i].Sequence = j.lastSeq
			if records[i].Timestamp.IsZero() {
				records[i].Timestamp = now
			}
			seqs[i] = j.lastSeq

			value, err := json.Marshal(records[i])
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			if err := bucket.Put(makeSequenceKey(j.lastSeq), value); err != nil {
				return err
			}
		}

		metaBucket := tx.Bucket(bucketMeta)
		return metaBucket.Put(keyLastSequence, int64ToBytes(j.lastSeq))
	})
	if err != nil {
		// Walk the counter back so sequences stay contiguous on disk.
		j.lastSeq -= int64(len(records))
		return nil, fmt.Errorf("failed to append to journal: %w", err)
	}

	for i := range records {
		j.updateIndex(records[i])
	}

	j.logger.Debug().
		Int("records", len(records)).
		Int64("last_sequence", j.lastSeq).
		Msg("journal appended")
	return seqs, nil
}

// History returns an instance's records, newest first. A zero limit
// means all of them.
func (j *Journal) History(instanceID string, limit int) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	hist, found := j.index.Get(&instanceHistory{InstanceID: instanceID})
	if !found {
		return nil, nil
	}

	seqs := hist.Sequences
	if limit > 0 && len(seqs) > limit {
		seqs = seqs[len(seqs)-limit:]
	}

	records := make([]Record, 0, len(seqs))
	err := j.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketActions)
		// Newest first: walk the sequence list backwards.
		for i := len(seqs) - 1; i >= 0; i-- {
			value := bucket.Get(makeSequenceKey(seqs[i]))
			if value == nil {
				continue // compacted away
			}
			var record Record
			if err := json.Unmarshal(value, &record); err != nil {
				return fmt.Errorf("failed to decode record %d: %w", seqs[i], err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Recent returns the latest n records across all instances, newest
// first.
func (j *Journal) Recent(n int) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var records []Record
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketActions).Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to decode record %s: %w", k, err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Stats summarizes the journal for the history command header.
type Stats struct {
	Records      int64
	Instances    int
	LastSequence int64
}

// Stats reports totals from the index.
func (j *Journal) Stats() Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var records int64
	j.index.Ascend(func(h *instanceHistory) bool {
		records += int64(len(h.Sequences))
		return true
	})
	return Stats{
		Records:      records,
		Instances:    j.index.Len(),
		LastSequence: j.lastSeq,
	}
}

// Compact drops all but the newest keepRecords records and rebuilds
// the index.
func (j *Journal) Compact(keepRecords int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.lastSeq - keepRecords
	if cutoff <= 0 {
		return nil
	}

	err := j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketActions)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if parseSequenceKey(k) <= cutoff {
				toDelete = append(toDelete, k)
			}
		}
		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to compact journal: %w", err)
	}

	return j.rebuildIndexLocked()
}

// Helper functions

func (j *Journal) updateIndex(record Record) {
	hist, found := j.index.Get(&instanceHistory{InstanceID: record.InstanceID})
	if !found {
		hist = &instanceHistory{InstanceID: record.InstanceID}
	}
	hist.Sequences = append(hist.Sequences, record.Sequence)
	hist.LastAction = record.Action
	hist.LastSeen = record.Timestamp
	j.index.ReplaceOrInsert(hist)
}

func (j *Journal) loadSequence() error {
	return j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyLastSequence)
		if data != nil {
			j.lastSeq = bytesToInt64(data)
		}
		return nil
	})
}

func (j *Journal) rebuildIndex() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rebuildIndexLocked()
}

func (j *Journal) rebuildIndexLocked() error {
	j.index.Clear(false)
	return j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketActions).ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to decode record %s: %w", k, err)
			}
			j.updateIndex(record)
			return nil
		})
	})
}

// makeSequenceKey keeps keys lexicographically ordered by sequence so
// cursor order is append order.
func makeSequenceKey(seq int64) []byte {
	return []byte(fmt.Sprintf("%016d", seq))
}

func parseSequenceKey(key []byte) int64 {
	var seq int64
	_, _ = fmt.Sscanf(string(key), "%016d", &seq)
	return seq
}

func int64ToBytes(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n)) // #nosec G115 -- sequence counter never negative
	return buf
}

func bytesToInt64(buf []byte) int64 {
	if len(buf) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(buf)) // #nosec G115 -- written by int64ToBytes
}
