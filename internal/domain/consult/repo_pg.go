package consult

import (
	"context"
	"errors"

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

const consultCols = `id, patient_id, assigned_gp_id, status, symptoms, duration, severity, summary, created_at, updated_at`

func (r *repoPG) scanConsult(row pgx.Row) (*Consult, error) {
	var c Consult
	err := row.Scan(&c.ID, &c.PatientID, &c.AssignedGPID, &c.Status,
		&c.Intake.Symptoms, &c.Intake.Duration, &c.Intake.Severity, &c.Summary,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Consult) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consults (id, patient_id, status, symptoms, duration, severity, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.Status, c.Intake.Symptoms, c.Intake.Duration, c.Intake.Severity, c.Summary).
		Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consult, error) {
	return r.scanConsult(r.conn(ctx).QueryRow(ctx, `SELECT `+consultCols+` FROM consults WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Consult, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+consultCols+` FROM consults WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *repoPG) ListForGP(ctx context.Context, gpID uuid.UUID) ([]*Consult, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+consultCols+` FROM consults
		WHERE assigned_gp_id = $1 OR (assigned_gp_id IS NULL AND status = $2)
		ORDER BY created_at`, gpID, StatusQueued)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *repoPG) collect(rows pgx.Rows) ([]*Consult, error) {
	defer rows.Close()
	var items []*Consult
	for rows.Next() {
		var c Consult
		if err := rows.Scan(&c.ID, &c.PatientID, &c.AssignedGPID, &c.Status,
			&c.Intake.Symptoms, &c.Intake.Duration, &c.Intake.Severity, &c.Summary,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *repoPG) Claim(ctx context.Context, id, gpID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consults SET assigned_gp_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND assigned_gp_id IS NULL AND status = $4`,
		id, gpID, StatusInProgress, StatusQueued)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Consult, error) {
	return r.scanConsult(r.conn(ctx).QueryRow(ctx, `
		UPDATE consults SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+consultCols, id, status))
}

func (r *repoPG) AddMessage(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consult_messages (id, consult_id, sender_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		m.ID, m.ConsultID, m.SenderID, m.Body).Scan(&m.CreatedAt)
}

func (r *repoPG) ListMessages(ctx context.Context, consultID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, consult_id, sender_id, body, created_at
		FROM consult_messages WHERE consult_id = $1 ORDER BY created_at`, consultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConsultID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}
