// Package store persists users, channels and chat history in SQLite. It
// implements the five-operation adapter the dispatch core depends on; the
// core never sees a *sql.DB or a SQL string.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUserExists is returned by CreateUser when the username is already
// taken (spec §4.3: "collisions within the store are prevented by the
// store's uniqueness constraint").
var ErrUserExists = errors.New("store: username already exists")

// ErrUserNotFound is returned by LookupUser when no such username exists.
var ErrUserNotFound = errors.New("store: user not found")

// ErrChannelNotFound names a missing channel. No function in this package
// returns it.
var ErrChannelNotFound = errors.New("store: channel not found")

// User is the stored account record.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// Channel is the stored channel record.
type Channel struct {
	ID          int64
	ParentID    *int64
	Name        string
	Description *string
}

// Message is one persisted chat line.
type Message struct {
	SenderName string
	ChannelID  int64
	Content    string
	CreatedAt  *time.Time
}

// Store persists server state in SQLite via modernc.org/sqlite, the same
// pure-Go driver and migrations-as-ordered-SQL-strings pattern the teacher
// uses for its own store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at_unix_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	parent_id INTEGER NULL REFERENCES channels(id),
	description TEXT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_name TEXT NOT NULL,
	channel_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created_at_unix_ms);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}

	slog.Debug("sqlite migrations applied")
	return nil
}

// LookupUser returns the account for username, or ErrUserNotFound.
func (s *Store) LookupUser(ctx context.Context, username string) (User, error) {
	const q = `SELECT id, username, password_hash FROM users WHERE username = ?`
	var u User
	err := s.db.QueryRowContext(ctx, q, username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new account, auto-registering unknown usernames per
// the authentication gateway's policy. Returns ErrUserExists on a
// uniqueness violation.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	const q = `INSERT INTO users (username, password_hash, created_at_unix_ms) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, username, passwordHash, time.Now().UnixMilli())
	if err != nil {
		if isUniqueConstraintErr(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	id, _ := res.LastInsertId()
	slog.Info("user created", "username", username, "user_id", id)
	return User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}

// ListChannels returns every channel in ascending id order.
func (s *Store) ListChannels(ctx context.Context) ([]Channel, error) {
	const q = `SELECT id, parent_id, name, description FROM channels ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var c Channel
		var parentID sql.NullInt64
		var description sql.NullString
		if err := rows.Scan(&c.ID, &parentID, &c.Name, &description); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		if parentID.Valid {
			c.ParentID = &parentID.Int64
		}
		if description.Valid {
			c.Description = &description.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateChannel inserts a channel; used only by startup seeding, never by
// the dispatch core at runtime.
func (s *Store) CreateChannel(ctx context.Context, name string, parentID *int64, description *string) (int64, error) {
	const q = `INSERT INTO channels (name, parent_id, description) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, name, parentID, description)
	if err != nil {
		return 0, fmt.Errorf("create channel: %w", err)
	}
	return res.LastInsertId()
}

// EnsureRootChannel inserts the channel_id=0 root channel if it does not
// already exist. Mumble's wire protocol treats channel 0 as the server's
// permanent root, so it is the one channel whose id cannot come from
// AUTOINCREMENT.
func (s *Store) EnsureRootChannel(ctx context.Context) error {
	const q = `INSERT OR IGNORE INTO channels (id, name, parent_id, description) VALUES (0, 'Root', NULL, NULL)`
	_, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return fmt.Errorf("ensure root channel: %w", err)
	}
	return nil
}

// ChannelCount reports how many channels exist. Root-channel seeding does
// not use it; EnsureRootChannel inserts the root only when it is absent.
func (s *Store) ChannelCount(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM channels`
	var n int
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count channels: %w", err)
	}
	return n, nil
}

// SaveMessage persists one chat line. Best-effort from the dispatch core's
// perspective: callers log failures and continue (spec §7).
func (s *Store) SaveMessage(ctx context.Context, senderUsername string, channelID uint32, content string) error {
	const q = `INSERT INTO messages (sender_name, channel_id, content, created_at_unix_ms) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, senderUsername, channelID, content, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit most-recent messages for channelID, in
// chronological order (oldest first), per spec §4.8.
func (s *Store) RecentMessages(ctx context.Context, channelID uint32, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT sender_name, channel_id, content, created_at_unix_ms
FROM messages
WHERE channel_id = ?
ORDER BY created_at_unix_ms DESC, id DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, q, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var createdAtMS int64
		if err := rows.Scan(&m.SenderName, &m.ChannelID, &m.Content, &createdAtMS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		t := time.UnixMilli(createdAtMS).UTC()
		m.CreatedAt = &t
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse DESC rows into chronological (oldest-first) order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
