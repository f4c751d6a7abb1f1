package note

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
	txcontext "bazaar/pkg/platform/tx"
)

// PostgresStore persists notes in the application_notes table. Insert-only,
// like the audit ledger.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, n *models.Note) error {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal note metadata: %w", err)
	}

	var authorID any
	if n.AuthorID != nil {
		authorID = uuid.UUID(*n.AuthorID)
	}

	query := `
		INSERT INTO application_notes
			(id, application_id, classification, content, metadata, author_id, author_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(n.ID), uuid.UUID(n.ApplicationID), string(n.Classification),
		n.Content, metadata, authorID, n.AuthorName, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByApplication(ctx context.Context, appID id.ApplicationID, applicantView bool) ([]*models.Note, error) {
	query := `
		SELECT id, application_id, classification, content, metadata, author_id, author_name, created_at
		FROM application_notes
		WHERE application_id = $1
	`
	args := []any{uuid.UUID(appID)}
	if applicantView {
		args = append(args, string(models.NoteUserFacing))
		query += " AND classification = $2"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNote(rows *sql.Rows) (*models.Note, error) {
	var (
		n              models.Note
		noteID, appID  uuid.UUID
		classification string
		metadata       []byte
		authorID       uuid.NullUUID
	)
	err := rows.Scan(&noteID, &appID, &classification, &n.Content, &metadata,
		&authorID, &n.AuthorName, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan note: %w", err)
	}

	n.ID = id.NoteID(noteID)
	n.ApplicationID = id.ApplicationID(appID)
	n.Classification = models.NoteClassification(classification)
	if authorID.Valid {
		a := id.AdminID(authorID.UUID)
		n.AuthorID = &a
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal note metadata: %w", err)
		}
	}
	return &n, nil
}
