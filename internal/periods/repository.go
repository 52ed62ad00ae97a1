package periods

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no period row for (company, year, month).
	ErrNotFound = errors.New("periods: period not found")
	// ErrAlreadyClosed indicates a close on a closed period.
	ErrAlreadyClosed = errors.New("periods: period already closed")
)

type Repository interface {
	GetOrOpen(ctx context.Context, companyID int64, year, month int) (Period, error)
	Get(ctx context.Context, companyID int64, year, month int) (Period, error)
	SetStatus(ctx context.Context, id int64, status PeriodStatus) error
	ListOpen(ctx context.Context, companyID int64) ([]Period, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, company_id, year, month, status, closed_at, created_at, updated_at`

// GetOrOpen returns the (company, year, month) period, creating an OPEN row
// when none exists. The upsert keeps concurrent opens idempotent.
func (r *repository) GetOrOpen(ctx context.Context, companyID int64, year, month int) (Period, error) {
	var p Period
	err := r.db.QueryRow(ctx, `INSERT INTO periods (company_id, year, month, status)
VALUES ($1,$2,$3,'OPEN')
ON CONFLICT (company_id, year, month) DO UPDATE SET year=EXCLUDED.year
RETURNING `+periodColumns, companyID, year, month).
		Scan(&p.ID, &p.CompanyID, &p.Year, &p.Month, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

func (r *repository) Get(ctx context.Context, companyID int64, year, month int) (Period, error) {
	var p Period
	err := r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE company_id=$1 AND year=$2 AND month=$3`,
		companyID, year, month).
		Scan(&p.ID, &p.CompanyID, &p.Year, &p.Month, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status PeriodStatus) error {
	closedAt := "NULL"
	if status == PeriodStatusClosed {
		closedAt = "now()"
	}
	tag, err := r.db.Exec(ctx, `UPDATE periods SET status=$2, closed_at=`+closedAt+`, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ListOpen(ctx context.Context, companyID int64) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM periods WHERE company_id=$1 AND status='OPEN' ORDER BY year, month`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Year, &p.Month, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
