package service

import (
	"context"
	"fmt"
	"time"

	"opsdesk/internal/finance"
	"opsdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ReportQuery carries the raw query-string filters of a finance report.
// Dates are inclusive calendar days.
type ReportQuery struct {
	ClientID   string `form:"client_id"`
	EmployeeID string `form:"employee_id"`
	From       string `form:"from"`
	To         string `form:"to"`
}

type ReportResponse struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
	From  string          `json:"from,omitempty"`
	To    string          `json:"to,omitempty"`
}

type FinanceService interface {
	Revenue(ctx context.Context, q ReportQuery) (*ReportResponse, error)
	Wages(ctx context.Context, q ReportQuery) (*ReportResponse, error)
}

type financeService struct {
	repo repository.FinanceRepository
}

func NewFinanceService(repo repository.FinanceRepository) FinanceService {
	return &financeService{repo: repo}
}

func (s *financeService) Revenue(ctx context.Context, q ReportQuery) (*ReportResponse, error) {
	r, err := parseRange(q)
	if err != nil {
		return nil, err
	}
	f := finance.PaymentFilter{Range: r}
	if f.ClientID, err = parseOptionalID("client_id", q.ClientID); err != nil {
		return nil, err
	}

	payments, err := s.repo.ListPayments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %w", err)
	}
	return toReport(finance.Revenue(payments, f), q), nil
}

func (s *financeService) Wages(ctx context.Context, q ReportQuery) (*ReportResponse, error) {
	r, err := parseRange(q)
	if err != nil {
		return nil, err
	}
	f := finance.WageFilter{Range: r}
	if f.EmployeeID, err = parseOptionalID("employee_id", q.EmployeeID); err != nil {
		return nil, err
	}

	wages, err := s.repo.ListWages(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wages: %w", err)
	}
	return toReport(finance.Wages(wages, f), q), nil
}

// parseRange turns from/to days into an inclusive window; to covers the
// whole of its day.
func parseRange(q ReportQuery) (finance.Range, error) {
	var r finance.Range
	if q.From != "" {
		from, err := time.Parse(dateLayout, q.From)
		if err != nil {
			return r, validationError("from must be YYYY-MM-DD")
		}
		r.From = from
	}
	if q.To != "" {
		to, err := time.Parse(dateLayout, q.To)
		if err != nil {
			return r, validationError("to must be YYYY-MM-DD")
		}
		r.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, validationError("from must not be after to")
	}
	return r, nil
}

func parseOptionalID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, validationError("invalid %s '%s'", field, raw)
	}
	return &id, nil
}

func toReport(sum finance.Summary, q ReportQuery) *ReportResponse {
	return &ReportResponse{Total: sum.Total, Count: sum.Count, From: q.From, To: q.To}
}
