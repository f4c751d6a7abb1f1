package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bazaar/internal/onboarding/models"
	personamodels "bazaar/internal/persona/models"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/sentinel"
	txcontext "bazaar/pkg/platform/tx"
)

// PostgresStore persists applications in the applications table. The partial
// unique index on (vendor_id) WHERE deleted_at IS NULL enforces the
// one-active-application-per-vendor invariant at the database, so concurrent
// creates race safely.
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

const appColumns = `
	id, vendor_id, type, status, current_step, total_steps,
	submitted_at, reviewed_by, reviewed_at, approved_at,
	rejected_at, rejection_reason,
	revision_requested, revision_requested_at, revision_requested_by, revision_reason, revision_completed_at,
	closed_at, close_reason, reopen_reason, legacy_notes,
	persona_inquiry_id, persona_status, persona_verified_at,
	persona_overridden, persona_override_reason, persona_overridden_by, persona_overridden_at,
	submitted_ip, submitted_user_agent, submitted_country,
	created_at, updated_at, deleted_at`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (` + appColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		        $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query, appArgs(app)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + appColumns + ` FROM applications WHERE id = $1`
	return s.queryOne(ctx, query, uuid.UUID(appID))
}

func (s *PostgresStore) FindActiveByVendor(ctx context.Context, vendorID id.VendorID) (*models.Application, error) {
	query := `SELECT ` + appColumns + ` FROM applications WHERE vendor_id = $1 AND deleted_at IS NULL`
	return s.queryOne(ctx, query, uuid.UUID(vendorID))
}

func (s *PostgresStore) Update(ctx context.Context, app *models.Application) error {
	query := `
		UPDATE applications SET
			status = $2, current_step = $3, total_steps = $4,
			reviewed_by = $5, reviewed_at = $6, approved_at = $7,
			rejected_at = $8, rejection_reason = $9,
			revision_requested = $10, revision_requested_at = $11, revision_requested_by = $12,
			revision_reason = $13, revision_completed_at = $14,
			closed_at = $15, close_reason = $16, reopen_reason = $17,
			persona_inquiry_id = $18, persona_status = $19, persona_verified_at = $20,
			persona_overridden = $21, persona_override_reason = $22, persona_overridden_by = $23, persona_overridden_at = $24,
			updated_at = $25, deleted_at = $26
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		string(app.Status), app.CurrentStep, app.TotalSteps,
		nullAdmin(app.ReviewedBy), app.ReviewedAt, app.ApprovedAt,
		app.RejectedAt, app.RejectionReason,
		app.RevisionRequested, app.RevisionRequestedAt, nullAdmin(app.RevisionRequestedBy),
		app.RevisionReason, app.RevisionCompletedAt,
		app.ClosedAt, app.CloseReason, app.ReopenReason,
		app.PersonaInquiryID, string(app.PersonaStatus), app.PersonaVerifiedAt,
		app.PersonaOverridden, app.PersonaOverrideReason, nullAdmin(app.PersonaOverriddenBy), app.PersonaOverriddenAt,
		app.UpdatedAt, app.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*models.Application, error) {
	query := `SELECT ` + appColumns + ` FROM applications WHERE deleted_at IS NULL`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY submitted_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM applications WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan application count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, arg any) (*models.Application, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("find application: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find application: %w", err)
		}
		return nil, sentinel.ErrNotFound
	}
	return scanApp(rows)
}

func appArgs(app *models.Application) []any {
	return []any{
		uuid.UUID(app.ID), uuid.UUID(app.VendorID), string(app.Type), string(app.Status),
		app.CurrentStep, app.TotalSteps,
		app.SubmittedAt, nullAdmin(app.ReviewedBy), app.ReviewedAt, app.ApprovedAt,
		app.RejectedAt, app.RejectionReason,
		app.RevisionRequested, app.RevisionRequestedAt, nullAdmin(app.RevisionRequestedBy),
		app.RevisionReason, app.RevisionCompletedAt,
		app.ClosedAt, app.CloseReason, app.ReopenReason, app.LegacyNotes,
		app.PersonaInquiryID, string(app.PersonaStatus), app.PersonaVerifiedAt,
		app.PersonaOverridden, app.PersonaOverrideReason, nullAdmin(app.PersonaOverriddenBy), app.PersonaOverriddenAt,
		app.SubmittedIP, app.SubmittedUserAgent, app.SubmittedCountry,
		app.CreatedAt, app.UpdatedAt, app.DeletedAt,
	}
}

func scanApp(rows *sql.Rows) (*models.Application, error) {
	var (
		app                 models.Application
		appID, vendorID     uuid.UUID
		appType, status     string
		personaStatus       string
		reviewedBy          uuid.NullUUID
		revisionRequestedBy uuid.NullUUID
		personaOverriddenBy uuid.NullUUID
	)
	err := rows.Scan(
		&appID, &vendorID, &appType, &status, &app.CurrentStep, &app.TotalSteps,
		&app.SubmittedAt, &reviewedBy, &app.ReviewedAt, &app.ApprovedAt,
		&app.RejectedAt, &app.RejectionReason,
		&app.RevisionRequested, &app.RevisionRequestedAt, &revisionRequestedBy,
		&app.RevisionReason, &app.RevisionCompletedAt,
		&app.ClosedAt, &app.CloseReason, &app.ReopenReason, &app.LegacyNotes,
		&app.PersonaInquiryID, &personaStatus, &app.PersonaVerifiedAt,
		&app.PersonaOverridden, &app.PersonaOverrideReason, &personaOverriddenBy, &app.PersonaOverriddenAt,
		&app.SubmittedIP, &app.SubmittedUserAgent, &app.SubmittedCountry,
		&app.CreatedAt, &app.UpdatedAt, &app.DeletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}

	app.ID = id.ApplicationID(appID)
	app.VendorID = id.VendorID(vendorID)
	app.Type = models.ApplicationType(appType)
	app.Status = models.Status(status)
	app.PersonaStatus = personamodels.Status(personaStatus)
	app.ReviewedBy = adminPtr(reviewedBy)
	app.RevisionRequestedBy = adminPtr(revisionRequestedBy)
	app.PersonaOverriddenBy = adminPtr(personaOverriddenBy)
	return &app, nil
}

func nullAdmin(a *id.AdminID) any {
	if a == nil {
		return nil
	}
	return uuid.UUID(*a)
}

func adminPtr(n uuid.NullUUID) *id.AdminID {
	if !n.Valid {
		return nil
	}
	a := id.AdminID(n.UUID)
	return &a
}
