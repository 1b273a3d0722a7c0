package audit

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"commandr-server/internal/model"
)

var bucketPruned = []byte("pruned_accounts")

// BoltSink stores records in a bbolt bucket keyed by an increasing sequence.
type BoltSink struct {
	db *bolt.DB
}

func OpenBoltSink(path string) (*BoltSink, error) {
	if path == "" {
		return nil, errors.New("audit: missing bolt path")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "audit: open bolt %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPruned)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "audit: create bucket")
	}
	return &BoltSink{db: db}, nil
}

func (s *BoltSink) Write(records []model.AccountRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPruned)
		for _, rec := range records {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return errors.Wrapf(err, "audit: encode %s", rec.ID)
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Records returns every stored record in write order.
func (s *BoltSink) Records() ([]model.AccountRecord, error) {
	var result []model.AccountRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPruned).ForEach(func(_, v []byte) error {
			var rec model.AccountRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			result = append(result, rec)
			return nil
		})
	})
	return result, err
}

func (s *BoltSink) Close() error {
	return s.db.Close()
}
