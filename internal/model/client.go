package model

import (
	"time"
)

// Client is the outermost aggregate root: projects, invoices and payments
// all hang off it.
type Client struct {
	Identity
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	CompanyName   string    `gorm:"type:varchar(255)" json:"company_name"`
	ContactPerson string    `gorm:"type:varchar(255)" json:"contact_person"`
	Email         string    `gorm:"type:varchar(255)" json:"email"`
	Phone         string    `gorm:"type:varchar(50)" json:"phone"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
