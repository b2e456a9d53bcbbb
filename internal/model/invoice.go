package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice status values
const (
	InvoiceStatusDraft = "DRAFT"
	InvoiceStatusSent  = "SENT"
	InvoiceStatusPaid  = "PAID"
)

// Invoice bills a client, usually for one project. ProjectID is nil for
// invoices raised directly against the client.
type Invoice struct {
	Identity
	InvoiceNo   string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	ClientID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Client      *Client         `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	ProjectID   *uuid.UUID      `gorm:"type:uuid;index" json:"project_id"`
	Project     *Project        `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	Status      string          `gorm:"type:varchar(20);not null;default:'DRAFT'" json:"status"`
	IssuedAt    time.Time       `json:"issued_at"`
	Note        string          `gorm:"type:text" json:"note"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InvoiceTask links billed tasks to an invoice
type InvoiceTask struct {
	InvoiceID uuid.UUID `gorm:"type:uuid;primaryKey" json:"invoice_id"`
	Invoice   *Invoice  `gorm:"foreignKey:InvoiceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	TaskID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"task_id"`
	Task      *Task     `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

// Payment is money received from a client. It counts toward revenue.
type Payment struct {
	Identity
	ClientID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Client    *Client         `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	ProjectID *uuid.UUID      `gorm:"type:uuid;index" json:"project_id"`
	Project   *Project        `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	PaidAt    time.Time       `gorm:"not null;index" json:"paid_at"`
	Method    string          `gorm:"type:varchar(30)" json:"method"`
	Reference string          `gorm:"type:varchar(100)" json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
}

// Service is a billable offering in the catalogue
type Service struct {
	Identity
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
