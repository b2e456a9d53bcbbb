package repository

import (
	"context"

	"opsdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, offset, limit int) ([]model.User, int64, error)
	ReplaceRoles(ctx context.Context, userID uuid.UUID, roles []string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Roles").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Roles").First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Roles").Order("email asc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// ReplaceRoles swaps the user's role assignments for the given set.
func (r *userRepository) ReplaceRoles(ctx context.Context, userID uuid.UUID, roles []string) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	rows := make([]model.UserRole, 0, len(roles))
	for _, name := range roles {
		rows = append(rows, model.UserRole{UserID: userID, RoleName: name})
	}
	return db.Create(&rows).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("user_id = ?", id).Delete(&model.UserRole{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.User{}).Error
}
