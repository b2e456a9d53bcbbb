package model

import (
	"time"
)

// Built-in role names
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTeamlead   = "teamlead"
	RoleAssociate  = "associate"
	RoleAccountant = "accountant"
)

// Page identifies a logical resource area guarded by the privilege matrix
type Page string

const (
	PageDashboard Page = "dashboard"
	PageClients   Page = "clients"
	PageEmployees Page = "employees"
	PageProjects  Page = "projects"
	PageTasks     Page = "tasks"
	PageInvoices  Page = "invoices"
	PagePayments  Page = "payments"
	PageServices  Page = "services"
	PageWages     Page = "wages"
)

// Operation is one of the four CRUD verbs
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// AllPages lists every page in matrix order.
var AllPages = []Page{
	PageDashboard, PageClients, PageEmployees, PageProjects, PageTasks,
	PageInvoices, PagePayments, PageServices, PageWages,
}

// AllOperations lists every operation in matrix order.
var AllOperations = []Operation{OpCreate, OpRead, OpUpdate, OpDelete}

func (p Page) Valid() bool {
	for _, known := range AllPages {
		if p == known {
			return true
		}
	}
	return false
}

func (o Operation) Valid() bool {
	for _, known := range AllOperations {
		if o == known {
			return true
		}
	}
	return false
}

// Role is a named set of privileges. A superuser role is granted every
// (page, operation) regardless of its privilege rows.
type Role struct {
	Identity
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"` // Prevent deletion of built-in roles
	IsSuperuser bool      `gorm:"default:false" json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RolePrivilege is one cell of the dense privilege matrix.
type RolePrivilege struct {
	Identity
	RoleName  string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_role_page_operation" json:"role"`
	PageName  Page      `gorm:"type:varchar(50);not null;uniqueIndex:idx_role_page_operation" json:"page_name"`
	Operation Operation `gorm:"type:varchar(10);not null;uniqueIndex:idx_role_page_operation" json:"operation"`
	Allowed   bool      `gorm:"not null;default:false" json:"allowed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
