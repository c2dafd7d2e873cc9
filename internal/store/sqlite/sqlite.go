package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/roomchat/roomchat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	room_id   TEXT NOT NULL REFERENCES rooms(room_id),
	seq       INTEGER NOT NULL,
	sender    TEXT NOT NULL,
	content   TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	PRIMARY KEY (room_id, seq)
);
`

// SQLiteStore implements store.RoomStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file; ":memory:" works for tests.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that want to apply their own schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also serializes the
	// append transaction below across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRoom persists a new room under a fresh storage-assigned id.
func (s *SQLiteStore) CreateRoom(ctx context.Context, roomID string) (*store.Room, error) {
	rec := &store.Room{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO rooms (id, room_id, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.RoomID, rec.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrRoomExists
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return rec, nil
}

// GetRoomByRoomID retrieves a room by its caller-chosen identifier.
func (s *SQLiteStore) GetRoomByRoomID(ctx context.Context, roomID string) (*store.Room, error) {
	query := `SELECT id, room_id, created_at FROM rooms WHERE room_id = ?`

	var rec store.Room
	err := s.db.QueryRowContext(ctx, query, roomID).Scan(&rec.ID, &rec.RoomID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &rec, nil
}

// ListRooms lists all rooms in creation order.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `SELECT id, room_id, created_at FROM rooms ORDER BY created_at, room_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		var rec store.Room
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	return rooms, nil
}

// AppendMessage appends msg to the room's history, assigning the next
// sequence number inside a single transaction. The single-connection pool
// plus the (room_id, seq) primary key guarantee that concurrent appends to
// one room never clobber each other.
func (s *SQLiteStore) AppendMessage(ctx context.Context, roomID string, msg store.Message) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE room_id = ?`, roomID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE room_id = ?`, roomID).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (room_id, seq, sender, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		roomID, seq, msg.Sender, msg.Content, msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	rec := msg
	rec.RoomID = roomID
	rec.Seq = seq
	return &rec, nil
}

// ListMessages returns the room's history in append order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string) ([]store.Message, error) {
	if _, err := s.GetRoomByRoomID(ctx, roomID); err != nil {
		return nil, err
	}

	query := `
		SELECT room_id, seq, sender, content, timestamp
		FROM messages
		WHERE room_id = ?
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]store.Message, 0)
	for rows.Next() {
		var rec store.Message
		if err := rows.Scan(&rec.RoomID, &rec.Seq, &rec.Sender, &rec.Content, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
