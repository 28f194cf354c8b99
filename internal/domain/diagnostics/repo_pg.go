package diagnostics

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

const orderCols = `id, patient_id, ordered_by_id, lab_id, test_type, status, result_file_url, created_at, updated_at`

func (r *repoPG) scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.PatientID, &o.OrderedByID, &o.LabID, &o.TestType,
		&o.Status, &o.ResultFileURL, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &o, err
}

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnostics_orders (id, patient_id, ordered_by_id, lab_id, test_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		o.ID, o.PatientID, o.OrderedByID, o.LabID, o.TestType, o.Status).
		Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM diagnostics_orders WHERE id = $1`, id))
}

func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID) ([]*Order, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+orderCols+` FROM diagnostics_orders WHERE `+column+` = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.PatientID, &o.OrderedByID, &o.LabID, &o.TestType,
			&o.Status, &o.ResultFileURL, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &o)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Order, error) {
	return r.list(ctx, "patient_id", patientID)
}

func (r *repoPG) ListByOrderer(ctx context.Context, gpID uuid.UUID) ([]*Order, error) {
	return r.list(ctx, "ordered_by_id", gpID)
}

func (r *repoPG) ListByLab(ctx context.Context, labID uuid.UUID) ([]*Order, error) {
	return r.list(ctx, "lab_id", labID)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Order, error) {
	return r.scanOrder(r.conn(ctx).QueryRow(ctx, `
		UPDATE diagnostics_orders SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderCols, id, status))
}

func (r *repoPG) SetResult(ctx context.Context, id uuid.UUID, fileURL string) (*Order, error) {
	return r.scanOrder(r.conn(ctx).QueryRow(ctx, `
		UPDATE diagnostics_orders SET status = $2, result_file_url = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderCols, id, StatusCompleted, fileURL))
}
