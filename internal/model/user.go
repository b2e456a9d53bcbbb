package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can sign in. A user may hold several roles; the
// session resolves the highest-priority one at sign-in.
type User struct {
	Identity
	Email     string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName  string     `gorm:"type:varchar(255);not null" json:"full_name"`
	Password  string     `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Roles     []UserRole `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"roles"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// RoleNames flattens the assigned roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.RoleName)
	}
	return names
}

// UserRole assigns a role to a user
type UserRole struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	RoleName string    `gorm:"type:varchar(50);primaryKey" json:"role"`
}
