package step

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/sentinel"
	txcontext "bazaar/pkg/platform/tx"
)

// PostgresStore persists steps in the application_steps table. Data and file
// descriptors are JSONB; the unique constraint on (application_id, number)
// backs the checklist's identity.
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

const stepColumns = `
	id, application_id, number, name, slug, optional, status,
	data, files, completed_at, revision_required, revision_notes,
	created_at, updated_at`

func (s *PostgresStore) CreateBatch(ctx context.Context, steps []*models.Step) error {
	exec := s.execer(ctx)
	query := `
		INSERT INTO application_steps (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	for _, st := range steps {
		data, files, err := marshalPayload(st)
		if err != nil {
			return err
		}
		_, err = exec.ExecContext(ctx, query,
			uuid.UUID(st.ID), uuid.UUID(st.ApplicationID), st.Number, st.Name, st.Slug,
			st.Optional, string(st.Status), data, files, st.CompletedAt,
			st.RevisionRequired, st.RevisionNotes, st.CreatedAt, st.UpdatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert step %d: %w", st.Number, err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByNumber(ctx context.Context, appID id.ApplicationID, number int) (*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM application_steps WHERE application_id = $1 AND number = $2`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID), number)
	if err != nil {
		return nil, fmt.Errorf("find step: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find step: %w", err)
		}
		return nil, sentinel.ErrNotFound
	}
	return scanStep(rows)
}

func (s *PostgresStore) ListByApplication(ctx context.Context, appID id.ApplicationID) ([]*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM application_steps WHERE application_id = $1 ORDER BY number`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []*models.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, st *models.Step) error {
	data, files, err := marshalPayload(st)
	if err != nil {
		return err
	}
	query := `
		UPDATE application_steps SET
			status = $2, data = $3, files = $4, completed_at = $5,
			revision_required = $6, revision_notes = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(st.ID), string(st.Status), data, files, st.CompletedAt,
		st.RevisionRequired, st.RevisionNotes, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func marshalPayload(st *models.Step) (data, files []byte, err error) {
	data, err = json.Marshal(st.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal step data: %w", err)
	}
	files, err = json.Marshal(st.Files)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal step files: %w", err)
	}
	return data, files, nil
}

func scanStep(rows *sql.Rows) (*models.Step, error) {
	var (
		st          models.Step
		stepID      uuid.UUID
		appID       uuid.UUID
		status      string
		data, files []byte
	)
	err := rows.Scan(&stepID, &appID, &st.Number, &st.Name, &st.Slug, &st.Optional, &status,
		&data, &files, &st.CompletedAt, &st.RevisionRequired, &st.RevisionNotes,
		&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}

	st.ID = id.StepID(stepID)
	st.ApplicationID = id.ApplicationID(appID)
	st.Status = models.StepStatus(status)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &st.Data); err != nil {
			return nil, fmt.Errorf("unmarshal step data: %w", err)
		}
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &st.Files); err != nil {
			return nil, fmt.Errorf("unmarshal step files: %w", err)
		}
	}
	return &st, nil
}
