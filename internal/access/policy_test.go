package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsdesk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockRoleStore struct {
	mock.Mock
}

func (m *mockRoleStore) FindRoleByName(ctx context.Context, name string) (*model.Role, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Role), args.Error(1)
}

func (m *mockRoleStore) ListPrivilegesByRole(ctx context.Context, roleName string) ([]model.RolePrivilege, error) {
	args := m.Called(ctx, roleName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RolePrivilege), args.Error(1)
}

func allRows(role string, allowed bool) []model.RolePrivilege {
	rows := make([]model.RolePrivilege, 0, len(model.AllPages)*len(model.AllOperations))
	for _, page := range model.AllPages {
		for _, op := range model.AllOperations {
			rows = append(rows, model.RolePrivilege{RoleName: role, PageName: page, Operation: op, Allowed: allowed})
		}
	}
	return rows
}

func newPolicy(store RoleStore, cfg Config) *Policy {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Minute
	}
	return NewPolicy(store, cfg, zap.NewNop())
}

func TestPolicy_DenyByDefault(t *testing.T) {
	ctx := context.Background()
	store := new(mockRoleStore)
	store.On("FindRoleByName", ctx, "manager").Return(&model.Role{Name: "manager"}, nil)
	store.On("ListPrivilegesByRole", ctx, "manager").Return([]model.RolePrivilege{
		{RoleName: "manager", PageName: model.PageTasks, Operation: model.OpRead, Allowed: true},
	}, nil)
	store.On("FindRoleByName", ctx, "ghost").Return(nil, gorm.ErrRecordNotFound)

	p := newPolicy(store, Config{})

	assert.True(t, p.HasCapability(ctx, "manager", model.PageTasks, model.OpRead))
	// no row for this cell
	assert.False(t, p.HasCapability(ctx, "manager", model.PageTasks, model.OpDelete))
	// no role at all
	assert.False(t, p.HasCapability(ctx, "ghost", model.PageTasks, model.OpRead))
	// no role on the session
	assert.False(t, p.HasCapability(ctx, "", model.PageTasks, model.OpRead))
	// unknown page
	assert.False(t, p.HasCapability(ctx, "manager", model.Page("reports"), model.OpRead))
}

func TestPolicy_SuperuserIgnoresRows(t *testing.T) {
	ctx := context.Background()
	store := new(mockRoleStore)
	store.On("FindRoleByName", ctx, model.RoleAdmin).Return(&model.Role{Name: model.RoleAdmin, IsSuperuser: true}, nil)
	store.On("ListPrivilegesByRole", ctx, model.RoleAdmin).Return(allRows(model.RoleAdmin, false), nil)

	p := newPolicy(store, Config{})

	for _, page := range model.AllPages {
		for _, op := range model.AllOperations {
			assert.True(t, p.HasCapability(ctx, model.RoleAdmin, page, op), "%s.%s", page, op)
		}
	}
	assert.True(t, p.IsSuperuser(ctx, Subject{Role: model.RoleAdmin}))
}

func TestPolicy_RoleNamedAdminWithoutFlagIsNotSuperuser(t *testing.T) {
	ctx := context.Background()
	store := new(mockRoleStore)
	store.On("FindRoleByName", ctx, model.RoleAdmin).Return(&model.Role{Name: model.RoleAdmin}, nil)
	store.On("ListPrivilegesByRole", ctx, model.RoleAdmin).Return(allRows(model.RoleAdmin, false), nil)

	p := newPolicy(store, Config{})

	assert.False(t, p.HasCapability(ctx, model.RoleAdmin, model.PageProjects, model.OpDelete))
}

func TestPolicy_StoreErrorFailsClosed(t *testing.T) {
	ctx := context.Background()
	store := new(mockRoleStore)
	store.On("FindRoleByName", ctx, "manager").Return(nil, errors.New("connection refused")).Once()
	store.On("FindRoleByName", ctx, "manager").Return(&model.Role{Name: "manager"}, nil).Once()
	store.On("ListPrivilegesByRole", ctx, "manager").Return(allRows("manager", true), nil).Once()

	p := newPolicy(store, Config{})

	assert.False(t, p.HasCapability(ctx, "manager", model.PageTasks, model.OpRead))
	// failure is not cached
	assert.True(t, p.HasCapability(ctx, "manager", model.PageTasks, model.OpRead))
	store.AssertExpectations(t)
}

func TestPolicy_BreakGlass(t *testing.T) {
	ctx := context.Background()
	store := new(mockRoleStore)

	p := newPolicy(store, Config{BreakGlassEmail: "Owner@Example.com"})

	s := Subject{Email: "owner@example.com", Role: ""}
	assert.True(t, p.Decide(ctx, s, model.PageWages, model.OpDelete))
	assert.True(t, p.IsSuperuser(ctx, s))
	assert.False(t, p.Decide(ctx, Subject{Email: "someone@example.com"}, model.PageWages, model.OpDelete))
	store.AssertNotCalled(t, "FindRoleByName", mock.Anything, mock.Anything)
}

func TestPolicy_BreakGlassDisabledWhenEmpty(t *testing.T) {
	p := newPolicy(new(mockRoleStore), Config{})
	assert.False(t, p.Decide(context.Background(), Subject{Email: ""}, model.PageWages, model.OpRead))
}

func TestPolicy_CacheAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := new(mockRoleStore)
	store.On("FindRoleByName", ctx, "associate").Return(&model.Role{Name: "associate"}, nil)
	store.On("ListPrivilegesByRole", ctx, "associate").Return(allRows("associate", false), nil).Once()
	store.On("ListPrivilegesByRole", ctx, "associate").Return(allRows("associate", true), nil).Once()

	p := newPolicy(store, Config{})

	assert.False(t, p.HasCapability(ctx, "associate", model.PageTasks, model.OpRead))
	assert.False(t, p.HasCapability(ctx, "associate", model.PageTasks, model.OpRead))
	store.AssertNumberOfCalls(t, "ListPrivilegesByRole", 1)

	p.Invalidate("associate")
	assert.True(t, p.HasCapability(ctx, "associate", model.PageTasks, model.OpRead))
	store.AssertNumberOfCalls(t, "ListPrivilegesByRole", 2)
}

func TestPolicy_CacheExpires(t *testing.T) {
	ctx := context.Background()
	store := new(mockRoleStore)
	store.On("FindRoleByName", ctx, "associate").Return(&model.Role{Name: "associate"}, nil)
	store.On("ListPrivilegesByRole", ctx, "associate").Return(allRows("associate", false), nil)

	p := newPolicy(store, Config{CacheTTL: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.HasCapability(ctx, "associate", model.PageTasks, model.OpRead)
	now = now.Add(2 * time.Minute)
	p.HasCapability(ctx, "associate", model.PageTasks, model.OpRead)

	store.AssertNumberOfCalls(t, "ListPrivilegesByRole", 2)
}

func TestPolicy_Capabilities(t *testing.T) {
	ctx := context.Background()
	store := new(mockRoleStore)
	store.On("FindRoleByName", ctx, "accountant").Return(&model.Role{Name: "accountant"}, nil)
	store.On("ListPrivilegesByRole", ctx, "accountant").Return([]model.RolePrivilege{
		{RoleName: "accountant", PageName: model.PagePayments, Operation: model.OpRead, Allowed: true},
		{RoleName: "accountant", PageName: model.PagePayments, Operation: model.OpCreate, Allowed: false},
	}, nil)

	p := newPolicy(store, Config{})
	caps := p.Capabilities(ctx, Subject{Role: "accountant"})

	assert.Len(t, caps, len(model.AllPages))
	assert.True(t, caps[model.PagePayments][model.OpRead])
	assert.False(t, caps[model.PagePayments][model.OpCreate])
	assert.False(t, caps[model.PageWages][model.OpRead])
}
