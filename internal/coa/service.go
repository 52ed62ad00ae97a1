package coa

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ByCode resolves one account.
func (s *Service) ByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return s.repo.ByCode(ctx, companyID, code)
}

// ListActive lists postable accounts in code order.
func (s *Service) ListActive(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.ListActive(ctx, companyID)
}

// List lists all accounts including inactive ones.
func (s *Service) List(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.List(ctx, companyID)
}

// Create validates and inserts a new postable account.
func (s *Service) Create(ctx context.Context, account Account) (Account, error) {
	account.Code = strings.TrimSpace(account.Code)
	account.Name = strings.TrimSpace(account.Name)
	if account.CompanyID == 0 {
		return Account{}, errors.New("coa: company id required")
	}
	if account.Code == "" || account.Name == "" {
		return Account{}, errors.New("coa: code and name required")
	}
	if !account.Nature.Valid() {
		return Account{}, errors.New("coa: unknown account nature")
	}
	account.IsActive = true
	return s.repo.Insert(ctx, account)
}

// Deactivate marks an account non-postable. Existing lines keep referencing it.
func (s *Service) Deactivate(ctx context.Context, companyID int64, code string) error {
	return s.repo.SetActive(ctx, companyID, code, false)
}

// Activate restores a deactivated account.
func (s *Service) Activate(ctx context.Context, companyID int64, code string) error {
	return s.repo.SetActive(ctx, companyID, code, true)
}
