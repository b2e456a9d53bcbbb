package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is the uuid primary key shared by every table. IDs are generated
// in the application so the same models migrate on postgres and sqlite.
type Identity struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
}

func (i *Identity) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
