package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jonboulle/clockwork"
)

// DefaultSQLiteDSN keeps the database in memory; entries never outlive the process.
const DefaultSQLiteDSN = ":memory:"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS entries (
	key          TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	content_type TEXT NOT NULL,
	payload      BLOB,
	created_at   INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL
)`

// SQLiteStore is a Store backed by an SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	clock clockwork.Clock

	mu     sync.Mutex
	stop   chan struct{}
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dsn string, opts Options) (*SQLiteStore, error) {
	opts = opts.withDefaults()
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// a single connection serialises writers and keeps in-memory databases alive
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		sqliteSchema,
		"CREATE INDEX IF NOT EXISTS entries_expires_idx ON entries (expires_at)",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite store: init schema: %w", err)
		}
	}

	s := &SQLiteStore{db: db, clock: opts.Clock, stop: make(chan struct{})}
	go s.sweepLoop(s.clock.NewTicker(opts.CleanupInterval))
	return s, nil
}

func (s *SQLiteStore) Get(key string) (*Entry, bool, error) {
	var (
		e         Entry
		kind      string
		createdAt int64
		expiresAt int64
	)
	err := s.db.QueryRow(
		"SELECT kind, content_type, payload, created_at, expires_at FROM entries WHERE key = ?", key,
	).Scan(&kind, &e.ContentType, &e.Payload, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite store: get %q: %w", key, err)
	}

	e.Key = key
	e.Kind = Kind(kind)
	e.CreatedAt = time.Unix(0, createdAt)
	e.TTL = time.Duration(expiresAt - createdAt)
	if !e.Live(s.clock.Now()) {
		if _, err := s.db.Exec("DELETE FROM entries WHERE key = ? AND expires_at = ?", key, expiresAt); err != nil {
			return nil, false, fmt.Errorf("sqlite store: drop expired %q: %w", key, err)
		}
		return nil, false, nil
	}
	return &e, true, nil
}

func (s *SQLiteStore) Put(key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("sqlite store: ttl must be > 0, got %s", ttl)
	}
	now := s.clock.Now()
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO entries (key, kind, content_type, payload, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)",
		key, string(entry.Kind), entry.ContentType, entry.Payload, now.UnixNano(), now.Add(ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite store: put %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlite store: delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Purge() error {
	if _, err := s.db.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("sqlite store: purge: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0
	}
	return n
}

// Sweep deletes every expired row and returns how many were removed.
func (s *SQLiteStore) Sweep() (int64, error) {
	res, err := s.db.Exec("DELETE FROM entries WHERE expires_at <= ?", s.clock.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite store: sweep: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) sweepLoop(ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			// errors here resurface on the next Get
			_, _ = s.Sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	close(s.stop)
	return s.db.Close()
}
