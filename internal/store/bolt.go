package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.etcd.io/bbolt"
)

const (
	boltBucketPosts = "posts" // key: ordered id -> boltRow JSON
	boltBucketMeta  = "meta"  // key: name -> value
)

// boltRow is the persisted shape of a post. No favorite field.
type boltRow struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Bolt is the single-file bbolt mirror backend.
// bbolt serializes writers and gives readers a consistent snapshot.
type Bolt struct {
	db     *bbolt.DB
	logger *log.Logger
	now    func() time.Time
}

// OpenBolt creates or opens a bbolt mirror at path.
func OpenBolt(path string, opts ...Option) (*Bolt, error) {
	o := buildOptions(opts)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(boltBucketPosts)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(boltBucketMeta)); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Bolt{db: db, logger: o.logger, now: o.now}, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// ReplaceAll drops the posts bucket and refills it in one transaction.
func (b *Bolt) ReplaceAll(posts []Post) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(boltBucketPosts)) != nil {
			if err := tx.DeleteBucket([]byte(boltBucketPosts)); err != nil {
				return fmt.Errorf("delete bucket: %w", err)
			}
		}
		bucket, err := tx.CreateBucket([]byte(boltBucketPosts))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}

		for _, p := range posts {
			data, err := json.Marshal(boltRow{Title: p.Title, Body: p.Body})
			if err != nil {
				return fmt.Errorf("encode post %d: %w", p.ID, err)
			}
			if err := bucket.Put(idKey(p.ID), data); err != nil {
				return fmt.Errorf("put post %d: %w", p.ID, err)
			}
		}

		stamp := b.now().UTC().Format(time.RFC3339Nano)
		return tx.Bucket([]byte(boltBucketMeta)).Put([]byte(metaReplacedAt), []byte(stamp))
	})
	if err != nil {
		b.logger.Error("replace mirror failed", "rows", len(posts), "err", err)
		return persistenceErr("replace all", err)
	}
	b.logger.Debug("mirror replaced", "rows", len(posts))
	return nil
}

// ReadAll returns every mirrored post ordered by id ascending.
func (b *Bolt) ReadAll() ([]Post, error) {
	var posts []Post
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketPosts)).ForEach(func(k, v []byte) error {
			var row boltRow
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("decode row: %w", err)
			}
			posts = append(posts, Post{ID: keyID(k), Title: row.Title, Body: row.Body})
			return nil
		})
	})
	if err != nil {
		b.logger.Error("read mirror failed", "err", err)
		return nil, persistenceErr("read all", err)
	}
	return posts, nil
}

// LastReplaced returns the commit time of the last ReplaceAll.
func (b *Bolt) LastReplaced() (time.Time, error) {
	var t time.Time
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(boltBucketMeta)).Get([]byte(metaReplacedAt))
		if v == nil {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return err
		}
		t = parsed
		return nil
	})
	if err != nil {
		return time.Time{}, persistenceErr("read meta", err)
	}
	return t, nil
}

// idKey encodes id so that bbolt's byte ordering matches signed numeric order.
func idKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id)^(1<<63))
	return k
}

func keyID(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k) ^ (1 << 63))
}
