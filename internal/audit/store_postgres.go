package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "bazaar/pkg/domain"
	txcontext "bazaar/pkg/platform/tx"
)

// PostgresStore persists ledger entries in the application_audit_logs table.
// Rows are insert-only; no update or delete statement exists here, and the
// table grants can revoke them outright.
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

// execer returns the open context transaction when a mutation is in flight,
// the plain handle otherwise.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	var actorID any
	if entry.ActorID != nil {
		actorID = uuid.UUID(*entry.ActorID)
	}

	query := `
		INSERT INTO application_audit_logs
			(id, application_id, action, actor_id, actor_name, metadata, ip, user_agent, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.ApplicationID),
		string(entry.Action),
		actorID,
		entry.ActorName,
		metadata,
		entry.IP,
		entry.UserAgent,
		entry.Country,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByApplication(ctx context.Context, appID id.ApplicationID) ([]Entry, error) {
	query := `
		SELECT id, application_id, action, actor_id, actor_name, metadata, ip, user_agent, country, created_at
		FROM application_audit_logs
		WHERE application_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CountByAction(ctx context.Context, appID id.ApplicationID, action Action) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM application_audit_logs WHERE application_id = $1 AND action = $2`,
		uuid.UUID(appID), string(action),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry    Entry
		entryID  uuid.UUID
		appID    uuid.UUID
		action   string
		actorID  uuid.NullUUID
		metadata []byte
	)
	if err := rows.Scan(&entryID, &appID, &action, &actorID, &entry.ActorName,
		&metadata, &entry.IP, &entry.UserAgent, &entry.Country, &entry.CreatedAt); err != nil {
		return Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}
	entry.ID = id.AuditEntryID(entryID)
	entry.ApplicationID = id.ApplicationID(appID)
	entry.Action = Action(action)
	if actorID.Valid {
		a := id.AdminID(actorID.UUID)
		entry.ActorID = &a
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return Entry{}, fmt.Errorf("unmarshal audit metadata: %w", err)
		}
	}
	return entry, nil
}
