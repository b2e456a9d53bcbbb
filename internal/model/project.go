package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project status values
const (
	ProjectStatusActive    = "ACTIVE"
	ProjectStatusOnHold    = "ON_HOLD"
	ProjectStatusCompleted = "COMPLETED"
)

// Foreign keys below are declared RESTRICT: the store refuses to remove a
// parent that still has children, so dependents must be cleared leaf-first.

// Project is the aggregate root for tasks, sprints, invoices and payments.
type Project struct {
	Identity
	ClientID    uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	Client      *Client   `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Task struct {
	Identity
	ProjectID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	Project    *Project   `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	AssigneeID *uuid.UUID `gorm:"type:uuid;index" json:"assignee_id"`
	Title      string     `gorm:"type:varchar(255);not null" json:"title"`
	Status     string     `gorm:"type:varchar(20);not null;default:'TODO'" json:"status"`
	DueDate    *time.Time `json:"due_date"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TimeEntry records hours logged against a task
type TimeEntry struct {
	Identity
	TaskID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"task_id"`
	Task       *Task           `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	EmployeeID *uuid.UUID      `gorm:"type:uuid;index" json:"employee_id"`
	Hours      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"hours"`
	WorkedAt   time.Time       `gorm:"not null" json:"worked_at"`
	Note       string          `gorm:"type:text" json:"note"`
	CreatedAt  time.Time       `json:"created_at"`
}

type TaskComment struct {
	Identity
	TaskID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"task_id"`
	Task      *Task      `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	AuthorID  *uuid.UUID `gorm:"type:uuid" json:"author_id"`
	Body      string     `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}

type Sprint struct {
	Identity
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SprintTask links a task into a sprint
type SprintTask struct {
	SprintID uuid.UUID `gorm:"type:uuid;primaryKey" json:"sprint_id"`
	Sprint   *Sprint   `gorm:"foreignKey:SprintID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	TaskID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"task_id"`
	Task     *Task     `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}
