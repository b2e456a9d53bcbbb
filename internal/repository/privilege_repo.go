package repository

import (
	"context"
	"time"

	"opsdesk/internal/model"

	"gorm.io/gorm"
)

type PrivilegeRepository interface {
	CreateRole(ctx context.Context, role *model.Role) error
	DeleteRole(ctx context.Context, name string) error
	FindRoleByName(ctx context.Context, name string) (*model.Role, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	CountRolePrivileges(ctx context.Context, roleName string) (int64, error)
	CreatePrivileges(ctx context.Context, rows []model.RolePrivilege) error
	ListPrivilegesByRole(ctx context.Context, roleName string) ([]model.RolePrivilege, error)
	FindPrivilege(ctx context.Context, roleName string, page model.Page, op model.Operation) (*model.RolePrivilege, error)
	SetAllowed(ctx context.Context, roleName string, page model.Page, op model.Operation, allowed bool, at time.Time) (int64, error)
	DeletePrivilegesByRole(ctx context.Context, roleName string) error
	DeleteUserRolesByRole(ctx context.Context, roleName string) error
}

type privilegeRepository struct {
	db *gorm.DB
}

func NewPrivilegeRepository(db *gorm.DB) PrivilegeRepository {
	return &privilegeRepository{db: db}
}

func (r *privilegeRepository) CreateRole(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *privilegeRepository) DeleteRole(ctx context.Context, name string) error {
	return GetDB(ctx, r.db).Where("name = ?", name).Delete(&model.Role{}).Error
}

func (r *privilegeRepository) FindRoleByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *privilegeRepository) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Order("created_at asc, name asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *privilegeRepository) CountRolePrivileges(ctx context.Context, roleName string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.RolePrivilege{}).Where("role_name = ?", roleName).Count(&count).Error
	return count, err
}

func (r *privilegeRepository) CreatePrivileges(ctx context.Context, rows []model.RolePrivilege) error {
	if len(rows) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).CreateInBatches(&rows, 100).Error
}

func (r *privilegeRepository) ListPrivilegesByRole(ctx context.Context, roleName string) ([]model.RolePrivilege, error) {
	var rows []model.RolePrivilege
	err := GetDB(ctx, r.db).
		Where("role_name = ?", roleName).
		Order("page_name asc, operation asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *privilegeRepository) FindPrivilege(ctx context.Context, roleName string, page model.Page, op model.Operation) (*model.RolePrivilege, error) {
	var row model.RolePrivilege
	err := GetDB(ctx, r.db).
		Where("role_name = ? AND page_name = ? AND operation = ?", roleName, page, op).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetAllowed touches exactly the (role, page, operation) row and returns the
// number of rows updated.
func (r *privilegeRepository) SetAllowed(ctx context.Context, roleName string, page model.Page, op model.Operation, allowed bool, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).
		Model(&model.RolePrivilege{}).
		Where("role_name = ? AND page_name = ? AND operation = ?", roleName, page, op).
		Updates(map[string]interface{}{"allowed": allowed, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (r *privilegeRepository) DeletePrivilegesByRole(ctx context.Context, roleName string) error {
	return GetDB(ctx, r.db).Where("role_name = ?", roleName).Delete(&model.RolePrivilege{}).Error
}

func (r *privilegeRepository) DeleteUserRolesByRole(ctx context.Context, roleName string) error {
	return GetDB(ctx, r.db).Where("role_name = ?", roleName).Delete(&model.UserRole{}).Error
}
