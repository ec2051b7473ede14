package dialogue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("session not found")
	// ErrVersionConflict is returned when a save races with another turn on
	// the same session. The losing turn must be retried from a fresh read.
	ErrVersionConflict = errors.New("session was modified concurrently")
)

// Repository persists sessions and their message logs.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	ListByDevice(ctx context.Context, deviceID string) ([]*Session, error)

	// Save writes the session back only if its stored version still matches
	// s.Version, then bumps the version. A mismatch yields ErrVersionConflict.
	Save(ctx context.Context, s *Session) error

	AppendMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
}

type postgresRepo struct {
	db *sql.DB
}

// NewRepository returns a Postgres-backed repository.
func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) Create(ctx context.Context, s *Session) error {
	symptoms, pending, meta, err := marshalState(s)
	if err != nil {
		return err
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt, s.Version = now, now, 1

	query := `
		INSERT INTO chat_sessions (id, device_id, user_email, topic, symptoms, pending_questions, meta, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.DeviceID, s.UserEmail, s.Topic, symptoms, pending, meta, s.Version, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT id, device_id, user_email, topic, symptoms, pending_questions, meta, version, created_at, updated_at
		FROM chat_sessions WHERE id = $1`
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresRepo) ListByDevice(ctx context.Context, deviceID string) ([]*Session, error) {
	query := `SELECT id, device_id, user_email, topic, symptoms, pending_questions, meta, version, created_at, updated_at
		FROM chat_sessions WHERE device_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Save(ctx context.Context, s *Session) error {
	symptoms, pending, meta, err := marshalState(s)
	if err != nil {
		return err
	}
	s.UpdatedAt = time.Now()

	query := `
		UPDATE chat_sessions
		SET user_email = $2, topic = $3, symptoms = $4, pending_questions = $5,
		    meta = $6, version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserEmail, s.Topic, symptoms, pending, meta, s.UpdatedAt, s.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row vanished or another turn committed first.
		if _, gerr := r.GetByID(ctx, s.ID); gerr != nil {
			return gerr
		}
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

func (r *postgresRepo) AppendMessage(ctx context.Context, m *Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	query := `INSERT INTO messages (session_id, is_user, text, timestamp) VALUES ($1, $2, $3, $4) RETURNING id`
	return r.db.QueryRowContext(ctx, query, m.SessionID, m.IsUser, m.Text, m.Timestamp).Scan(&m.ID)
}

func (r *postgresRepo) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	query := `SELECT id, session_id, is_user, text, timestamp FROM messages WHERE session_id = $1 ORDER BY timestamp, id`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.IsUser, &m.Text, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var symptoms, pending, meta []byte
	err := row.Scan(
		&s.ID, &s.DeviceID, &s.UserEmail, &s.Topic,
		&symptoms, &pending, &meta,
		&s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if len(symptoms) > 0 {
		if err := json.Unmarshal(symptoms, &s.Symptoms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal symptoms: %w", err)
		}
	}
	if len(pending) > 0 {
		if err := json.Unmarshal(pending, &s.PendingQuestions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending questions: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}
	return &s, nil
}

func marshalState(s *Session) (symptoms, pending, meta []byte, err error) {
	if symptoms, err = json.Marshal(s.Symptoms); err != nil {
		return nil, nil, nil, err
	}
	if pending, err = json.Marshal(s.PendingQuestions); err != nil {
		return nil, nil, nil, err
	}
	if meta, err = json.Marshal(s.Meta); err != nil {
		return nil, nil, nil, err
	}
	return symptoms, pending, meta, nil
}
