// Package finance holds the filter predicates and sums behind the revenue and
// wage reports. Everything here is pure so the numbers can be checked without
// a database.
package finance

import (
	"time"

	"opsdesk/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Range is an inclusive time window. A zero bound leaves that side open.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Summary is a total over a set of distinct rows.
type Summary struct {
	Total decimal.Decimal
	Count int
}

type PaymentFilter struct {
	ClientID *uuid.UUID
	Range
}

func (f PaymentFilter) Match(p model.Payment) bool {
	if f.ClientID != nil && p.ClientID != *f.ClientID {
		return false
	}
	return f.Contains(p.PaidAt)
}

// Revenue sums Amount over the payments matching f. A payment appearing more
// than once in the input is counted once.
func Revenue(payments []model.Payment, f PaymentFilter) Summary {
	seen := make(map[uuid.UUID]struct{}, len(payments))
	sum := Summary{Total: decimal.Zero}
	for _, p := range payments {
		if !f.Match(p) {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		sum.Total = sum.Total.Add(p.Amount)
		sum.Count++
	}
	return sum
}

type WageFilter struct {
	EmployeeID *uuid.UUID
	Range
}

func (f WageFilter) Match(w model.Wage) bool {
	if f.EmployeeID != nil && w.EmployeeID != *f.EmployeeID {
		return false
	}
	return f.Contains(w.PaidAt)
}

// Wages sums Amount over the distinct wages matching f.
func Wages(wages []model.Wage, f WageFilter) Summary {
	seen := make(map[uuid.UUID]struct{}, len(wages))
	sum := Summary{Total: decimal.Zero}
	for _, w := range wages {
		if !f.Match(w) {
			continue
		}
		if _, dup := seen[w.ID]; dup {
			continue
		}
		seen[w.ID] = struct{}{}
		sum.Total = sum.Total.Add(w.Amount)
		sum.Count++
	}
	return sum
}
