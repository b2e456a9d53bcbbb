package repository

import (
	"context"

	"opsdesk/internal/finance"
	"opsdesk/internal/model"

	"gorm.io/gorm"
)

// FinanceRepository fetches the rows behind the revenue and wage reports
// using the same predicates as the finance package.
type FinanceRepository interface {
	ListPayments(ctx context.Context, f finance.PaymentFilter) ([]model.Payment, error)
	ListWages(ctx context.Context, f finance.WageFilter) ([]model.Wage, error)
}

type financeRepository struct {
	db *gorm.DB
}

func NewFinanceRepository(db *gorm.DB) FinanceRepository {
	return &financeRepository{db: db}
}

func (r *financeRepository) ListPayments(ctx context.Context, f finance.PaymentFilter) ([]model.Payment, error) {
	query := withRange(GetDB(ctx, r.db), "paid_at", f.Range)
	if f.ClientID != nil {
		query = query.Where("client_id = ?", *f.ClientID)
	}

	var payments []model.Payment
	if err := query.Order("paid_at asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *financeRepository) ListWages(ctx context.Context, f finance.WageFilter) ([]model.Wage, error) {
	query := withRange(GetDB(ctx, r.db), "paid_at", f.Range)
	if f.EmployeeID != nil {
		query = query.Where("employee_id = ?", *f.EmployeeID)
	}

	var wages []model.Wage
	if err := query.Order("paid_at asc").Find(&wages).Error; err != nil {
		return nil, err
	}
	return wages, nil
}

func withRange(db *gorm.DB, column string, r finance.Range) *gorm.DB {
	if !r.From.IsZero() {
		db = db.Where(column+" >= ?", r.From)
	}
	if !r.To.IsZero() {
		db = db.Where(column+" <= ?", r.To)
	}
	return db
}
