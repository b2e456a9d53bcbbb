package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Entity types recorded in the activity log
const (
	EntityProject   = "project"
	EntityClient    = "client"
	EntityRole      = "role"
	EntityPrivilege = "role_privilege"
	EntityUser      = "user"
)

// ActivityLog is the append-only record of who changed what, and when
type ActivityLog struct {
	Identity
	ActorID     *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"` // nil for automated changes
	ActorEmail  string     `gorm:"type:varchar(255)" json:"actor_email"`
	ActionType  string     `gorm:"type:varchar(50);not null;index" json:"action_type"`
	EntityType  string     `gorm:"type:varchar(50);not null;index" json:"entity_type"`
	EntityID    string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName  string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Description string     `gorm:"type:text" json:"description"`
	Comment     string     `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}
