package dedup

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"aidigest/pkg/domain"
)

//go:embed schema.sql
var schema string

// Store is the persistent deduplication store. An article counts as a
// duplicate when a prior record shares its URL or its normalized title
// fingerprint. Single writer per run; concurrent readers are fine.
type Store struct {
	conn     *sqlx.DB
	lookback time.Duration
	now      func() time.Time
}

// Config represents store configuration
type Config struct {
	DSN          string
	MaxOpenConns int
	Lookback     time.Duration // cleanup never touches records inside this window
}

// Stats holds store counters
type Stats struct {
	Total   int
	Last24h int
}

// NewStore opens the store and initializes the schema. A failure here is
// fatal for the run: without the store duplicate delivery cannot be ruled out.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		cfg.DSN = "file:aidigest.db?cache=shared&mode=rwc"
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = 24 * time.Hour
	}

	conn, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	// optimize SQLite settings
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{conn: conn, lookback: cfg.Lookback, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// IsDuplicate reports whether the article matches a prior record by URL or
// by normalized title fingerprint
func (s *Store) IsDuplicate(ctx context.Context, a domain.Article) (bool, error) {
	var exists bool
	err := s.conn.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM seen_articles WHERE url = ? OR title_fingerprint = ?)",
		a.URL, TitleFingerprint(a.Title))
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return exists, nil
}

// MarkSent records the article as delivered. Idempotent: re-marking an id
// refreshes its sent_at. Retried on SQLite lock errors.
func (s *Store) MarkSent(ctx context.Context, a domain.Article) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := s.conn.ExecContext(ctx,
			"INSERT OR REPLACE INTO seen_articles (id, url, title_fingerprint, sent_at) VALUES (?, ?, ?, ?)",
			a.ID, a.URL, TitleFingerprint(a.Title), s.now().UTC())
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("mark sent: %w", err)}
		}
		return nil
	})
}

// FilterDuplicates returns the articles not seen before, preserving input
// order. Duplicates inside the batch itself are also collapsed, first
// occurrence wins.
func (s *Store) FilterDuplicates(ctx context.Context, articles []domain.Article) ([]domain.Article, error) {
	unique := make([]domain.Article, 0, len(articles))
	seenURL := map[string]bool{}
	seenFP := map[string]bool{}

	for _, a := range articles {
		fp := TitleFingerprint(a.Title)
		if seenURL[a.URL] || seenFP[fp] {
			continue
		}

		dup, err := s.IsDuplicate(ctx, a)
		if err != nil {
			return nil, err
		}
		if dup {
			continue
		}

		seenURL[a.URL] = true
		seenFP[fp] = true
		unique = append(unique, a)
	}

	lgr.Printf("[INFO] dedup: %d -> %d unique articles", len(articles), len(unique))
	return unique, nil
}

// MarkSentAll marks every article in the batch as delivered
func (s *Store) MarkSentAll(ctx context.Context, articles []domain.Article) error {
	for _, a := range articles {
		if err := s.MarkSent(ctx, a); err != nil {
			return fmt.Errorf("mark sent %s: %w", a.ID, err)
		}
	}
	return nil
}

// CleanupOlderThan purges records with sent_at older than the given age.
// The purge horizon never crosses into the active lookback window, so a
// record still needed for dedup inside the window survives regardless of
// the requested age.
func (s *Store) CleanupOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age < s.lookback {
		age = s.lookback
	}
	cutoff := s.now().Add(-age).UTC()

	res, err := s.conn.ExecContext(ctx, "DELETE FROM seen_articles WHERE sent_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows affected: %w", err)
	}
	if n > 0 {
		lgr.Printf("[INFO] dedup cleanup removed %d records older than %v", n, age)
	}
	return n, nil
}

// GetStats returns total and last-24h counters
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.conn.GetContext(ctx, &st.Total, "SELECT COUNT(*) FROM seen_articles"); err != nil {
		return st, fmt.Errorf("stats total: %w", err)
	}
	cutoff := s.now().Add(-24 * time.Hour).UTC()
	if err := s.conn.GetContext(ctx, &st.Last24h, "SELECT COUNT(*) FROM seen_articles WHERE sent_at > ?", cutoff); err != nil {
		return st, fmt.Errorf("stats last24h: %w", err)
	}
	return st, nil
}

// GetState reads one tracker state value
func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.GetContext(ctx, &value, "SELECT value FROM tracker_state WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get state %s: %w", key, err)
	}
	return value, true, nil
}

// SetState writes one tracker state value, committing immediately
func (s *Store) SetState(ctx context.Context, key, value string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := s.conn.ExecContext(ctx,
			"INSERT OR REPLACE INTO tracker_state (key, value, updated_at) VALUES (?, ?, ?)",
			key, value, s.now().UTC())
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("set state: %w", err)}
		}
		return nil
	})
}

// TitleFingerprint normalizes a title and hashes it: lowercase, keep only
// alphanumerics and whitespace, collapse whitespace runs, then sha256. This
// matches republished articles whose titles differ only in punctuation.
func TitleFingerprint(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	normalized := strings.Join(strings.Fields(b.String()), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
