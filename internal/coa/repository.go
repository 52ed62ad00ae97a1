package coa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates a missing account.
	ErrNotFound = errors.New("coa: account not found")
	// ErrDuplicateCode indicates the code already exists for the company.
	ErrDuplicateCode = errors.New("coa: account code already exists")
)

type Repository interface {
	ByCode(ctx context.Context, companyID int64, code string) (Account, error)
	ListActive(ctx context.Context, companyID int64) ([]Account, error)
	List(ctx context.Context, companyID int64) ([]Account, error)
	Insert(ctx context.Context, account Account) (Account, error)
	SetActive(ctx context.Context, companyID int64, code string, active bool) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, company_id, code, name, nature, is_active, created_at, updated_at`

func (r *repository) ByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code).
		Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Nature, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) ListActive(ctx context.Context, companyID int64) ([]Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND is_active ORDER BY code`, companyID)
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
}

func (r *repository) list(ctx context.Context, query string, companyID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Nature, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Insert(ctx context.Context, account Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, nature, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		account.CompanyID, account.Code, account.Name, account.Nature, account.IsActive)
	if err := row.Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return account, nil
}

func (r *repository) SetActive(ctx context.Context, companyID int64, code string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=now() WHERE company_id=$1 AND code=$2`,
		companyID, code, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
