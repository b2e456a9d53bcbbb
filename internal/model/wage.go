package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Employee struct {
	Identity
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	FullName  string     `gorm:"type:varchar(255);not null" json:"full_name"`
	Email     string     `gorm:"type:varchar(255)" json:"email"`
	Position  string     `gorm:"type:varchar(100)" json:"position"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Wage is a single payout to an employee
type Wage struct {
	Identity
	EmployeeID uuid.UUID       `gorm:"type:uuid;not null;index" json:"employee_id"`
	Employee   *Employee       `gorm:"foreignKey:EmployeeID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	PaidAt     time.Time       `gorm:"not null;index" json:"paid_at"`
	Note       string          `gorm:"type:text" json:"note"`
	CreatedAt  time.Time       `json:"created_at"`
}
