package auditevent

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const auditCols = `id, event, actor_id, actor_role, resource_type, resource_id, meta, recorded_at`

func (r *repoPG) Create(ctx context.Context, ev *AuditEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_events (id, event, actor_id, actor_role, resource_type, resource_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING recorded_at`,
		ev.ID, ev.Event, ev.ActorID, ev.ActorRole, ev.ResourceType, ev.ResourceID, ev.Meta).
		Scan(&ev.RecordedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*AuditEvent, error) {
	var ev AuditEvent
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+auditCols+` FROM audit_events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Event, &ev.ActorID, &ev.ActorRole, &ev.ResourceType, &ev.ResourceID, &ev.Meta, &ev.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *repoPG) ListByResource(ctx context.Context, resourceType, resourceID string, limit, offset int) ([]*AuditEvent, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE resource_type = $1 AND resource_id = $2`,
		resourceType, resourceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+auditCols+` FROM audit_events
		 WHERE resource_type = $1 AND resource_id = $2
		 ORDER BY recorded_at DESC LIMIT $3 OFFSET $4`,
		resourceType, resourceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AuditEvent
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.Event, &ev.ActorID, &ev.ActorRole, &ev.ResourceType, &ev.ResourceID, &ev.Meta, &ev.RecordedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &ev)
	}
	return items, total, rows.Err()
}
