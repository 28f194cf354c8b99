package prescription

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

const rxCols = `id, patient_id, consult_id, status, items, qr_token, qr_disabled, pdf_downloaded, file_url, created_at`

func (r *repoPG) scanRx(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.ConsultID, &p.Status, &p.Items,
		&p.QRToken, &p.QRDisabled, &p.PDFDownloaded, &p.FileURL, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, consult_id, status, items, qr_token, qr_disabled, pdf_downloaded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		p.ID, p.PatientID, p.ConsultID, p.Status, p.Items, p.QRToken, p.QRDisabled, p.PDFDownloaded).
		Scan(&p.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return r.scanRx(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *repoPG) GetByToken(ctx context.Context, token string) (*Prescription, error) {
	return r.scanRx(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescriptions WHERE qr_token = $1`, token))
}

func (r *repoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE patient_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.PatientID, &p.ConsultID, &p.Status, &p.Items,
			&p.QRToken, &p.QRDisabled, &p.PDFDownloaded, &p.FileURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Prescription, error) {
	if fields.QRDisabled != nil && !*fields.QRDisabled {
		var disabled bool
		err := r.conn(ctx).QueryRow(ctx, `SELECT qr_disabled FROM prescriptions WHERE id = $1`, id).Scan(&disabled)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if disabled {
			return nil, ErrReenableQR
		}
	}
	return r.scanRx(r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET
			status = COALESCE($2, status),
			qr_disabled = COALESCE($3, qr_disabled),
			file_url = COALESCE($4, file_url)
		WHERE id = $1
		RETURNING `+rxCols,
		id, fields.Status, fields.QRDisabled, fields.FileURL))
}

func (r *repoPG) MarkDownloaded(ctx context.Context, id uuid.UUID, fileURL string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions
		SET qr_disabled = TRUE, pdf_downloaded = TRUE, file_url = $2
		WHERE id = $1 AND qr_disabled = FALSE`,
		id, fileURL)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
