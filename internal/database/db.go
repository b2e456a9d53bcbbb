package database

import (
	"fmt"

	"opsdesk/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Warn("failed to auto-migrate models", zap.Error(err))
	}

	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Role{},
		&model.RolePrivilege{},
		&model.User{},
		&model.UserRole{},
		&model.Client{},
		&model.Project{},
		&model.Task{},
		&model.TimeEntry{},
		&model.TaskComment{},
		&model.Sprint{},
		&model.SprintTask{},
		&model.Invoice{},
		&model.InvoiceTask{},
		&model.Payment{},
		&model.Service{},
		&model.Employee{},
		&model.Wage{},
		&model.ActivityLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
