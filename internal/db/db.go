// Package db provides SQLite storage for fuc.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arconyx/fuc/internal/types"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection for fuc operations. The connection is
// shared read/write across all workers; multi-statement writes for one
// email go through a single transaction.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) a fuc database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Now returns the current time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// --- Email processed markers ---

// IsProcessed reports the recorded outcome for a message id, or nil when
// the message has never reached a terminal state.
func (d *DB) IsProcessed(id string) (*types.ProcessedEmail, error) {
	e := &types.ProcessedEmail{}
	err := d.conn.QueryRow(
		"SELECT id, success, processed_at FROM emails WHERE id = ?", id,
	).Scan(&e.ID, &e.Success, &e.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query email %s: %w", id, err)
	}
	return e, nil
}

// MarkProcessed records the terminal outcome for a message id. The upsert
// is idempotent by id, so replays and the stale-worker race cannot
// duplicate rows.
func (d *DB) MarkProcessed(id string, success bool) error {
	_, err := d.conn.Exec(`
		INSERT INTO emails (id, success, processed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			success = excluded.success,
			processed_at = excluded.processed_at`,
		id, success, Now(),
	)
	if err != nil {
		return fmt.Errorf("mark email %s processed: %w", id, err)
	}
	return nil
}

// EmailCounts returns how many messages reached a successful vs abandoned
// terminal state.
func (d *DB) EmailCounts() (processed, abandoned int) {
	d.conn.QueryRow("SELECT COUNT(*) FROM emails WHERE success = 1").Scan(&processed)
	d.conn.QueryRow("SELECT COUNT(*) FROM emails WHERE success = 0").Scan(&abandoned)
	return processed, abandoned
}

// --- Works and updates ---

// SaveResults persists one email's works and update rows atomically,
// stamping every update with the email's receipt time (epoch ms). A crash
// mid-write can never leave works without their update rows.
func (d *DB) SaveResults(updates []types.Update, receivedAt int64) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		if err := upsertWork(tx, u.Work); err != nil {
			return err
		}
		if err := insertUpdate(tx, u, receivedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

// upsertWork writes a work keyed by id. Detailed records overwrite
// whatever is there; sparse records only ever insert a missing title and
// never downgrade an existing detailed row.
func upsertWork(tx *sql.Tx, w types.Work) error {
	if w.Detailed {
		_, err := tx.Exec(`
			INSERT INTO works (id, title, detailed, authors, chapters, fandom, rating, warnings, series, summary)
			VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				detailed = 1,
				authors = excluded.authors,
				chapters = excluded.chapters,
				fandom = excluded.fandom,
				rating = excluded.rating,
				warnings = excluded.warnings,
				series = excluded.series,
				summary = excluded.summary`,
			w.ID, w.Title, nullStr(w.Authors), nullStr(w.Chapters), nullStr(w.Fandom),
			nullStr(w.Rating), nullStr(w.Warnings), nullStr(w.Series), nullStr(w.Summary),
		)
		if err != nil {
			return fmt.Errorf("upsert work %d: %w", w.ID, err)
		}
		return nil
	}

	_, err := tx.Exec(
		"INSERT OR IGNORE INTO works (id, title, detailed) VALUES (?, ?, 0)",
		w.ID, w.Title,
	)
	if err != nil {
		return fmt.Errorf("insert sparse work %d: %w", w.ID, err)
	}
	return nil
}

// insertUpdate appends one update row. There is deliberately no dedup key:
// the emails table is authoritative for replay prevention.
func insertUpdate(tx *sql.Tx, u types.Update, receivedAt int64) error {
	var chapterID any
	title := u.Work.Title
	var summary any
	if u.Kind == types.NewChapter {
		chapterID = u.ChapterID
		title = u.ChapterTitle
		if u.ChapterSummary != "" {
			summary = u.ChapterSummary
		}
	}
	_, err := tx.Exec(
		"INSERT INTO updates (work_id, chapter_id, title, summary, received_at) VALUES (?, ?, ?, ?, ?)",
		u.Work.ID, chapterID, title, summary, receivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert update for work %d: %w", u.Work.ID, err)
	}
	return nil
}

// GetWork returns a work row by id, or nil when absent.
func (d *DB) GetWork(id int64) (*types.Work, error) {
	w := &types.Work{}
	var authors, chapters, fandom, rating, warnings, series, summary sql.NullString
	err := d.conn.QueryRow(`
		SELECT id, title, detailed, authors, chapters, fandom, rating, warnings, series, summary
		FROM works WHERE id = ?`, id).Scan(
		&w.ID, &w.Title, &w.Detailed, &authors, &chapters, &fandom, &rating, &warnings, &series, &summary,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query work %d: %w", id, err)
	}
	w.Authors = authors.String
	w.Chapters = chapters.String
	w.Fandom = fandom.String
	w.Rating = rating.String
	w.Warnings = warnings.String
	w.Series = series.String
	w.Summary = summary.String
	return w, nil
}

// RecentUpdate is one row of the status view.
type RecentUpdate struct {
	WorkTitle  string
	Title      string
	ChapterID  int64
	ReceivedAt int64
}

// RecentUpdates returns the latest update rows joined with their work titles.
func (d *DB) RecentUpdates(limit int) ([]RecentUpdate, error) {
	rows, err := d.conn.Query(`
		SELECT w.title, u.title, COALESCE(u.chapter_id, 0), u.received_at
		FROM updates u
		JOIN works w ON w.id = u.work_id
		ORDER BY u.received_at DESC, u.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent updates: %w", err)
	}
	defer rows.Close()

	var result []RecentUpdate
	for rows.Next() {
		var r RecentUpdate
		if err := rows.Scan(&r.WorkTitle, &r.Title, &r.ChapterID, &r.ReceivedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// WorkCount returns the total number of known works.
func (d *DB) WorkCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM works").Scan(&n)
	return n
}

// UpdateCount returns the total number of recorded updates.
func (d *DB) UpdateCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM updates").Scan(&n)
	return n
}

// --- Tokens and state ---

// SaveToken stores the serialized OAuth token, replacing any previous one.
func (d *DB) SaveToken(token string) error {
	_, err := d.conn.Exec(`
		INSERT INTO tokens (id, token, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		token, Now(),
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// LoadToken returns the stored OAuth token, or "" when none has been saved.
func (d *DB) LoadToken() (string, error) {
	var token string
	err := d.conn.QueryRow("SELECT token FROM tokens WHERE id = 1").Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// SetState stores a key/value pair (walker cursors and the like).
func (d *DB) SetState(key, value string) error {
	_, err := d.conn.Exec(`
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// GetState returns the value for a state key, or "" when unset.
func (d *DB) GetState(key string) (string, error) {
	var value string
	err := d.conn.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
