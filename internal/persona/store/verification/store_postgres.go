package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bazaar/internal/persona/models"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/sentinel"
	txcontext "bazaar/pkg/platform/tx"
)

// PostgresStore persists verifications in the persona_verifications table,
// keyed by application.
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

const verificationColumns = `
	application_id, inquiry_id, status, raw_payload, verification_url,
	last_checked_at, failure_reason,
	overridden, override_reason, overridden_by, overridden_at,
	verified_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, v *models.Verification) error {
	query := `
		INSERT INTO persona_verifications (` + verificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query, verificationArgs(v)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByApplication(ctx context.Context, appID id.ApplicationID) (*models.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM persona_verifications WHERE application_id = $1`
	return s.queryOne(ctx, query, uuid.UUID(appID))
}

func (s *PostgresStore) FindByInquiry(ctx context.Context, inquiryID string) (*models.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM persona_verifications WHERE inquiry_id = $1`
	return s.queryOne(ctx, query, inquiryID)
}

func (s *PostgresStore) Update(ctx context.Context, v *models.Verification) error {
	query := `
		UPDATE persona_verifications SET
			inquiry_id = $2, status = $3, raw_payload = $4, verification_url = $5,
			last_checked_at = $6, failure_reason = $7,
			overridden = $8, override_reason = $9, overridden_by = $10, overridden_at = $11,
			verified_at = $12, updated_at = $13
		WHERE application_id = $1
	`
	args := verificationArgs(v)
	// Args mirror the column list minus created_at.
	args = append(args[:12], args[13])
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, arg any) (*models.Verification, error) {
	row := s.execer(ctx).QueryRowContext(ctx, query, arg)
	v, err := scanVerification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query verification: %w", err)
	}
	return v, nil
}

func verificationArgs(v *models.Verification) []any {
	var overriddenBy any
	if v.OverriddenBy != nil {
		overriddenBy = uuid.UUID(*v.OverriddenBy)
	}
	var payload any
	if len(v.RawPayload) > 0 {
		payload = []byte(v.RawPayload)
	}
	return []any{
		uuid.UUID(v.ApplicationID), v.InquiryID, string(v.Status), payload, v.VerificationURL,
		v.LastCheckedAt, v.FailureReason,
		v.Overridden, v.OverrideReason, overriddenBy, v.OverriddenAt,
		v.VerifiedAt, v.CreatedAt, v.UpdatedAt,
	}
}

func scanVerification(row *sql.Row) (*models.Verification, error) {
	var (
		v            models.Verification
		appID        uuid.UUID
		status       string
		payload      []byte
		overriddenBy uuid.NullUUID
	)
	err := row.Scan(
		&appID, &v.InquiryID, &status, &payload, &v.VerificationURL,
		&v.LastCheckedAt, &v.FailureReason,
		&v.Overridden, &v.OverrideReason, &overriddenBy, &v.OverriddenAt,
		&v.VerifiedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.ApplicationID = id.ApplicationID(appID)
	v.Status = models.Status(status)
	if len(payload) > 0 {
		v.RawPayload = json.RawMessage(payload)
	}
	if overriddenBy.Valid {
		a := id.AdminID(overriddenBy.UUID)
		v.OverriddenBy = &a
	}
	return &v, nil
}
