package referral

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

const refCols = `id, patient_id, gp_id, specialist_id, reason, status, created_at, updated_at`

func (r *repoPG) scanRef(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.PatientID, &ref.GPID, &ref.SpecialistID,
		&ref.Reason, &ref.Status, &ref.CreatedAt, &ref.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &ref, err
}

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO referrals (id, patient_id, gp_id, specialist_id, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		ref.ID, ref.PatientID, ref.GPID, ref.SpecialistID, ref.Reason, ref.Status).
		Scan(&ref.CreatedAt, &ref.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return r.scanRef(r.conn(ctx).QueryRow(ctx, `SELECT `+refCols+` FROM referrals WHERE id = $1`, id))
}

func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID) ([]*Referral, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+refCols+` FROM referrals WHERE `+column+` = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Referral
	for rows.Next() {
		var ref Referral
		if err := rows.Scan(&ref.ID, &ref.PatientID, &ref.GPID, &ref.SpecialistID,
			&ref.Reason, &ref.Status, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &ref)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Referral, error) {
	return r.list(ctx, "patient_id", patientID)
}

func (r *repoPG) ListByGP(ctx context.Context, gpID uuid.UUID) ([]*Referral, error) {
	return r.list(ctx, "gp_id", gpID)
}

func (r *repoPG) ListBySpecialist(ctx context.Context, specialistID uuid.UUID) ([]*Referral, error) {
	return r.list(ctx, "specialist_id", specialistID)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Referral, error) {
	return r.scanRef(r.conn(ctx).QueryRow(ctx, `
		UPDATE referrals SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+refCols, id, status))
}
