package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"opsdesk/internal/access"
	"opsdesk/internal/model"
	"opsdesk/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type SetPrivilegeRequest struct {
	Page      string `json:"page" binding:"required"`
	Operation string `json:"operation" binding:"required"`
	Allowed   *bool  `json:"allowed" binding:"required"`
}

type RoleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `json:"is_system"`
	IsSuperuser bool   `json:"is_superuser"`
	CreatedAt   string `json:"created_at"`
}

type PrivilegeResponse struct {
	Role      string `json:"role"`
	Page      string `json:"page"`
	Operation string `json:"operation"`
	Allowed   bool   `json:"allowed"`
	UpdatedAt string `json:"updated_at"`
}

// MatrixResponse is one role's slice of the privilege matrix, keyed page then
// operation. Cells with no row are absent and read as denied.
type MatrixResponse struct {
	Role       RoleResponse               `json:"role"`
	Privileges map[string]map[string]bool `json:"privileges"`
}

// PolicyCache is the part of the access policy the matrix writes invalidate.
type PolicyCache interface {
	Invalidate(role string)
}

// --- Interface ---

type PrivilegeService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	Matrix(ctx context.Context, role string) (*MatrixResponse, error)
	ProvisionRole(ctx context.Context, req CreateRoleRequest, actor access.Subject) (*RoleResponse, error)
	SetPrivilege(ctx context.Context, role string, req SetPrivilegeRequest, actor access.Subject) (*PrivilegeResponse, error)
	DeleteRole(ctx context.Context, role string, actor access.Subject) error
	SeedDefaults(ctx context.Context) error
}

type privilegeService struct {
	repo        repository.PrivilegeRepository
	txManager   repository.TransactionManager
	cache       PolicyCache
	activity    ActivityService
	broadcaster Broadcaster
	log         *zap.Logger
	now         func() time.Time
}

func NewPrivilegeService(
	repo repository.PrivilegeRepository,
	txManager repository.TransactionManager,
	cache PolicyCache,
	activity ActivityService,
	broadcaster Broadcaster,
	log *zap.Logger,
) PrivilegeService {
	return &privilegeService{
		repo:        repo,
		txManager:   txManager,
		cache:       cache,
		activity:    activity,
		broadcaster: broadcaster,
		log:         log.Named("privileges"),
		now:         time.Now,
	}
}

const topicPrivilegesChanged = "privileges.changed"

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,49}$`)

// --- Implementation ---

func (s *privilegeService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *privilegeService) Matrix(ctx context.Context, role string) (*MatrixResponse, error) {
	r, err := s.repo.FindRoleByName(ctx, role)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("role '%s': %w", role, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}

	rows, err := s.repo.ListPrivilegesByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch privileges: %w", err)
	}

	matrix := make(map[string]map[string]bool, len(model.AllPages))
	for _, row := range rows {
		ops, ok := matrix[string(row.PageName)]
		if !ok {
			ops = make(map[string]bool, len(model.AllOperations))
			matrix[string(row.PageName)] = ops
		}
		ops[string(row.Operation)] = row.Allowed
	}

	return &MatrixResponse{Role: toRoleResponse(*r), Privileges: matrix}, nil
}

// ProvisionRole creates the role together with its full pages × operations
// grid, every cell denied. A name that already owns a role record or any
// privilege row is rejected and nothing is written.
func (s *privilegeService) ProvisionRole(ctx context.Context, req CreateRoleRequest, actor access.Subject) (*RoleResponse, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if !roleNamePattern.MatchString(name) {
		return nil, validationError("role name must be 2-50 characters of a-z, 0-9, '_' or '-', starting with a letter")
	}

	role := model.Role{Name: name, Description: strings.TrimSpace(req.Description)}

	var entry *model.ActivityLog
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.provision(txCtx, &role, false); err != nil {
			return err
		}
		var err error
		entry, err = s.activity.Record(txCtx, ActivityEvent{
			Actor:       actor,
			ActionType:  model.ActionCreate,
			EntityType:  model.EntityRole,
			EntityID:    role.ID.String(),
			EntityName:  role.Name,
			Description: fmt.Sprintf("Provisioned role '%s' with %d privileges", role.Name, len(model.AllPages)*len(model.AllOperations)),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, role.Name, entry, payload{"role": role.Name, "action": "provisioned"})

	resp := toRoleResponse(role)
	return &resp, nil
}

func (s *privilegeService) provision(ctx context.Context, role *model.Role, allowed bool) error {
	existing, err := s.repo.CountRolePrivileges(ctx, role.Name)
	if err != nil {
		return fmt.Errorf("failed to check role '%s': %w", role.Name, err)
	}
	if existing > 0 {
		return fmt.Errorf("role '%s': %w", role.Name, ErrRoleExists)
	}
	if _, err := s.repo.FindRoleByName(ctx, role.Name); err == nil {
		return fmt.Errorf("role '%s': %w", role.Name, ErrRoleExists)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check role '%s': %w", role.Name, err)
	}

	if err := s.repo.CreateRole(ctx, role); err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	rows := make([]model.RolePrivilege, 0, len(model.AllPages)*len(model.AllOperations))
	for _, page := range model.AllPages {
		for _, op := range model.AllOperations {
			rows = append(rows, model.RolePrivilege{
				RoleName:  role.Name,
				PageName:  page,
				Operation: op,
				Allowed:   allowed,
			})
		}
	}
	if err := s.repo.CreatePrivileges(ctx, rows); err != nil {
		return fmt.Errorf("failed to create privileges: %w", err)
	}
	return nil
}

// SetPrivilege flips a single matrix cell and nothing else.
func (s *privilegeService) SetPrivilege(ctx context.Context, role string, req SetPrivilegeRequest, actor access.Subject) (*PrivilegeResponse, error) {
	page := model.Page(req.Page)
	op := model.Operation(req.Operation)
	if !page.Valid() {
		return nil, validationError("unknown page '%s'", req.Page)
	}
	if !op.Valid() {
		return nil, validationError("unknown operation '%s'", req.Operation)
	}
	if req.Allowed == nil {
		return nil, validationError("allowed is required")
	}

	n, err := s.repo.SetAllowed(ctx, role, page, op, *req.Allowed, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update privilege: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s.%s for role '%s': %w", page, op, role, ErrPrivilegeNotFound)
	}

	row, err := s.repo.FindPrivilege(ctx, role, page, op)
	if err != nil {
		return nil, fmt.Errorf("failed to reload privilege: %w", err)
	}

	entry, err := s.activity.Record(ctx, ActivityEvent{
		Actor:       actor,
		ActionType:  model.ActionUpdate,
		EntityType:  model.EntityPrivilege,
		EntityID:    row.ID.String(),
		EntityName:  fmt.Sprintf("%s:%s.%s", role, page, op),
		Description: fmt.Sprintf("Set %s.%s for role '%s' to %t", page, op, role, *req.Allowed),
	})
	if err != nil {
		// The cell is already written; losing the audit line is logged, not fatal.
		s.log.Error("failed to record privilege change", zap.Error(err))
	}

	s.afterWrite(ctx, role, entry, payload{"role": role, "page": page, "operation": op, "allowed": *req.Allowed})

	resp := toPrivilegeResponse(*row)
	return &resp, nil
}

func (s *privilegeService) DeleteRole(ctx context.Context, role string, actor access.Subject) error {
	var entry *model.ActivityLog
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.FindRoleByName(txCtx, role)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("role '%s': %w", role, ErrNotFound)
			}
			return fmt.Errorf("failed to fetch role: %w", err)
		}
		if r.IsSystem {
			return fmt.Errorf("role '%s': %w", role, ErrSystemRole)
		}

		if err := s.repo.DeletePrivilegesByRole(txCtx, role); err != nil {
			return fmt.Errorf("failed to delete privileges: %w", err)
		}
		if err := s.repo.DeleteUserRolesByRole(txCtx, role); err != nil {
			return fmt.Errorf("failed to unassign role: %w", err)
		}
		if err := s.repo.DeleteRole(txCtx, role); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}

		entry, err = s.activity.Record(txCtx, ActivityEvent{
			Actor:       actor,
			ActionType:  model.ActionDelete,
			EntityType:  model.EntityRole,
			EntityID:    r.ID.String(),
			EntityName:  r.Name,
			Description: fmt.Sprintf("Deleted role '%s'", r.Name),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.afterWrite(ctx, role, entry, payload{"role": role, "action": "deleted"})
	return nil
}

// SeedDefaults provisions the built-in roles that do not exist yet.
// admin is a superuser; its cells are seeded allowed for display only.
func (s *privilegeService) SeedDefaults(ctx context.Context) error {
	defaults := []model.Role{
		{Name: model.RoleAdmin, Description: "Full access to every page", IsSystem: true, IsSuperuser: true},
		{Name: model.RoleManager, Description: "Runs clients, projects and staff", IsSystem: true},
		{Name: model.RoleTeamlead, Description: "Leads project delivery", IsSystem: true},
		{Name: model.RoleAccountant, Description: "Invoices, payments and wages", IsSystem: true},
		{Name: model.RoleAssociate, Description: "Works on assigned tasks", IsSystem: true},
	}

	for i := range defaults {
		role := defaults[i]
		if _, err := s.repo.FindRoleByName(ctx, role.Name); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check role '%s': %w", role.Name, err)
		}

		err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			return s.provision(txCtx, &role, role.IsSuperuser)
		})
		if err != nil {
			return fmt.Errorf("failed to seed role '%s': %w", role.Name, err)
		}
		s.cache.Invalidate(role.Name)
		s.log.Info("seeded role", zap.String("role", role.Name))
	}
	return nil
}

// payload is the JSON object shape of broadcast messages.
type payload = map[string]interface{}

func (s *privilegeService) afterWrite(ctx context.Context, role string, entry *model.ActivityLog, data payload) {
	s.cache.Invalidate(role)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(topicPrivilegesChanged, data)
	}
	s.activity.Announce(ctx, entry)
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		IsSuperuser: r.IsSuperuser,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPrivilegeResponse(p model.RolePrivilege) PrivilegeResponse {
	return PrivilegeResponse{
		Role:      p.RoleName,
		Page:      string(p.PageName),
		Operation: string(p.Operation),
		Allowed:   p.Allowed,
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}
