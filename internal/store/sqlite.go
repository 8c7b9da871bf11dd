package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrateMu serializes goose runs; goose keeps its base FS and dialect in
// package globals.
var migrateMu sync.Mutex

// SQLite is the default mirror backend.
// Thread-safety: all methods are safe for concurrent use via internal mutex.
// Writers take the write lock, so a read never observes a half-applied replace.
type SQLite struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *log.Logger
	now    func() time.Time
}

// Open creates a SQLite mirror at dbPath and applies pending migrations.
// ":memory:" opens a private in-memory database.
func Open(dbPath string, opts ...Option) (*SQLite, error) {
	o := buildOptions(opts)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Each connection would get its own empty database; pin one.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &SQLite{db: db, logger: o.logger, now: o.now}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{s.logger})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(s.db, "migrations")
}

// Close closes the database connection.
// Acquires the write lock so an in-flight replace finishes first.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ReplaceAll deletes every row and inserts posts in a single transaction.
// A nil or empty posts slice leaves the mirror empty.
// On failure the transaction is rolled back, the fault is logged, and an
// error wrapping ErrPersistence is returned.
func (s *SQLite) ReplaceAll(posts []Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replaceAll(posts); err != nil {
		s.logger.Error("replace mirror failed", "rows", len(posts), "err", err)
		return persistenceErr("replace all", err)
	}
	s.logger.Debug("mirror replaced", "rows", len(posts))
	return nil
}

func (s *SQLite) replaceAll(posts []Post) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM posts"); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}

	if len(posts) > 0 {
		// Duplicate ids collapse to the last occurrence.
		stmt, perr := tx.Prepare("INSERT OR REPLACE INTO posts (id, title, body) VALUES (?, ?, ?)")
		if perr != nil {
			return fmt.Errorf("prepare insert: %w", perr)
		}
		defer stmt.Close()

		for _, p := range posts {
			if _, err = stmt.Exec(p.ID, p.Title, p.Body); err != nil {
				return fmt.Errorf("insert post %d: %w", p.ID, err)
			}
		}
	}

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO mirror_meta (key, value) VALUES (?, ?)",
		metaReplacedAt, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("stamp replace time: %w", err)
	}

	return tx.Commit()
}

// ReadAll returns every mirrored post ordered by id ascending.
// Favorite is always false; the schema has no column for it.
func (s *SQLite) ReadAll() ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts, err := s.readAll()
	if err != nil {
		s.logger.Error("read mirror failed", "err", err)
		return nil, persistenceErr("read all", err)
	}
	return posts, nil
}

func (s *SQLite) readAll() ([]Post, error) {
	rows, err := s.db.Query("SELECT id, title, body FROM posts ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Body); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// LastReplaced returns the commit time of the last ReplaceAll.
func (s *SQLite) LastReplaced() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM mirror_meta WHERE key = ?", metaReplacedAt).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, persistenceErr("read meta", err)
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, persistenceErr("parse meta", err)
	}
	return t, nil
}

// gooseLogger routes migration output into the store logger.
type gooseLogger struct {
	l *log.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Debugf(format, v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Fatalf(format, v...)
}
