package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/dkeye/Pulse/internal/domain"
)

// SQLite is the durable MessageStore. Schema is created on open; WAL mode
// for concurrent readers under the fan-out path.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS channel_members (
			channel_id TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			added_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (channel_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, id);
		CREATE TABLE IF NOT EXISTS reactions (
			message_id TEXT NOT NULL REFERENCES messages(id),
			emoji      TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			PRIMARY KEY (message_id, emoji, user_id)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// AddChannelMember is the seam the CRUD side writes through; the gateway
// itself only reads membership.
func (s *SQLite) AddChannelMember(ctx context.Context, channelID string, uid domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO channel_members (channel_id, user_id) VALUES (?, ?)`,
		channelID, string(uid))
	return err
}

func (s *SQLite) IsChannelMember(ctx context.Context, channelID string, uid domain.UserID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM channel_members WHERE channel_id = ? AND user_id = ?`,
		channelID, string(uid)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) ListChannelMembers(ctx context.Context, channelID string) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM channel_members WHERE channel_id = ?`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserID
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, domain.UserID(uid))
	}
	return out, rows.Err()
}

func (s *SQLite) CreateMessage(ctx context.Context, channelID string, uid domain.UserID, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:        domain.MessageID(ulid.Make().String()),
		ChannelID: channelID,
		UserID:    uid,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Reactions: map[string][]domain.UserID{},
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, channel_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(msg.ID), msg.ChannelID, string(msg.UserID), msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ToggleReaction flips the (message, emoji, user) row in one transaction,
// so concurrent toggles from the same user settle as strict alternation.
func (s *SQLite) ToggleReaction(ctx context.Context, id domain.MessageID, uid domain.UserID, emoji string) (*domain.ReactionDelta, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var channelID string
	err = tx.QueryRowContext(ctx,
		`SELECT channel_id FROM messages WHERE id = ?`, string(id)).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = ? AND emoji = ? AND user_id = ?`,
		string(id), emoji, string(uid))
	if err != nil {
		return nil, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	removed := deleted > 0
	if !removed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reactions (message_id, emoji, user_id) VALUES (?, ?, ?)`,
			string(id), emoji, string(uid)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.ReactionDelta{
		MessageID: id, ChannelID: channelID,
		Emoji: emoji, UserID: uid, Removed: removed,
	}, nil
}

// GetMessage returns the message with its current reaction sets.
func (s *SQLite) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	msg := &domain.Message{Reactions: map[string][]domain.UserID{}}
	var mid, uid string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, user_id, content, created_at FROM messages WHERE id = ?`,
		string(id)).Scan(&mid, &msg.ChannelID, &uid, &msg.Content, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	msg.ID = domain.MessageID(mid)
	msg.UserID = domain.UserID(uid)

	rows, err := s.db.QueryContext(ctx,
		`SELECT emoji, user_id FROM reactions WHERE message_id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var emoji, user string
		if err := rows.Scan(&emoji, &user); err != nil {
			return nil, err
		}
		msg.Reactions[emoji] = append(msg.Reactions[emoji], domain.UserID(user))
	}
	return msg, rows.Err()
}
