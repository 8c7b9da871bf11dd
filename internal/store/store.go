// Package store provides the local mirror of the last fetched post list.
//
// The mirror is replaced wholesale on every successful fetch. There is no
// upsert or diff path: ReplaceAll deletes every row and inserts the new set
// inside one transaction.
package store

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// ErrPersistence wraps every read or write fault reported by a mirror backend.
var ErrPersistence = errors.New("persistence error")

// Backend names accepted by OpenMirror.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Post is a single list item fetched from the remote API.
// Favorite is a client-only annotation and is never written to the mirror.
type Post struct {
	ID       int64
	Title    string
	Body     string
	Favorite bool
}

// Mirror is implemented by both backends.
type Mirror interface {
	// ReplaceAll deletes every row and inserts one row per post.
	ReplaceAll(posts []Post) error
	// ReadAll returns every row sorted by id ascending.
	ReadAll() ([]Post, error)
	// LastReplaced reports when ReplaceAll last committed; zero if never.
	LastReplaced() (time.Time, error)
	Close() error
}

var (
	_ Mirror = (*SQLite)(nil)
	_ Mirror = (*Bolt)(nil)
)

// Option configures a mirror backend.
type Option func(*options)

type options struct {
	logger *log.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used to stamp LastReplaced.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: log.New(io.Discard),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// OpenMirror opens the named backend at path.
func OpenMirror(backend, path string, opts ...Option) (Mirror, error) {
	switch backend {
	case "", BackendSQLite:
		return Open(path, opts...)
	case BackendBolt:
		return OpenBolt(path, opts...)
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", backend)
	}
}

// persistenceErr tags err as a persistence failure for op.
func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

const metaReplacedAt = "replaced_at"
