package service

import (
	"context"
	"testing"
	"time"

	"opsdesk/internal/access"
	"opsdesk/internal/model"
	"opsdesk/internal/repository"
	"opsdesk/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var cellsPerRole = len(model.AllPages) * len(model.AllOperations)

var admin = access.Subject{UserID: "", Email: "root@example.com", Role: model.RoleAdmin}

type privilegeFixture struct {
	db          *gorm.DB
	repo        repository.PrivilegeRepository
	policy      *access.Policy
	svc         PrivilegeService
	broadcaster *recordingBroadcaster
}

func newPrivilegeFixture(t *testing.T) *privilegeFixture {
	t.Helper()
	db := testutil.NewDB(t)
	repo := repository.NewPrivilegeRepository(db)
	policy := access.NewPolicy(repo, access.Config{CacheTTL: time.Hour}, zap.NewNop())
	b := &recordingBroadcaster{}
	return &privilegeFixture{
		db:          db,
		repo:        repo,
		policy:      policy,
		broadcaster: b,
		svc:         NewPrivilegeService(repo, repository.NewTransactionManager(db), policy, newActivity(db), b, zap.NewNop()),
	}
}

func (f *privilegeFixture) rows(t *testing.T, role string) []model.RolePrivilege {
	t.Helper()
	rows, err := f.repo.ListPrivilegesByRole(context.Background(), role)
	require.NoError(t, err)
	return rows
}

func TestPrivilegeService_ProvisionRoleCreatesDenseDeniedGrid(t *testing.T) {
	f := newPrivilegeFixture(t)

	role, err := f.svc.ProvisionRole(context.Background(), CreateRoleRequest{Name: " Reviewer ", Description: "reads things"}, admin)
	require.NoError(t, err)
	assert.Equal(t, "reviewer", role.Name)
	assert.False(t, role.IsSuperuser)

	rows := f.rows(t, "reviewer")
	require.Len(t, rows, cellsPerRole)
	seen := map[string]bool{}
	for _, row := range rows {
		assert.False(t, row.Allowed)
		seen[string(row.PageName)+"."+string(row.Operation)] = true
	}
	assert.Len(t, seen, cellsPerRole)

	assert.Equal(t, []string{topicPrivilegesChanged}, f.broadcaster.topics)
	assert.Equal(t, int64(1), activityCount(t, f.db, model.EntityRole))
}

func TestPrivilegeService_ProvisionRoleRejectsExisting(t *testing.T) {
	f := newPrivilegeFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProvisionRole(ctx, CreateRoleRequest{Name: "reviewer"}, admin)
	require.NoError(t, err)

	_, err = f.svc.ProvisionRole(ctx, CreateRoleRequest{Name: "reviewer"}, admin)
	assert.ErrorIs(t, err, ErrRoleExists)
	assert.Len(t, f.rows(t, "reviewer"), cellsPerRole)
}

func TestPrivilegeService_ProvisionRoleRejectsOrphanRows(t *testing.T) {
	f := newPrivilegeFixture(t)
	ctx := context.Background()

	// Rows left behind without a role record still claim the name.
	require.NoError(t, f.repo.CreatePrivileges(ctx, []model.RolePrivilege{
		{RoleName: "ghost", PageName: model.PageTasks, Operation: model.OpRead, Allowed: true},
	}))

	_, err := f.svc.ProvisionRole(ctx, CreateRoleRequest{Name: "ghost"}, admin)
	assert.ErrorIs(t, err, ErrRoleExists)
	assert.Len(t, f.rows(t, "ghost"), 1)

	_, err = f.repo.FindRoleByName(ctx, "ghost")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPrivilegeService_ProvisionRoleValidatesName(t *testing.T) {
	f := newPrivilegeFixture(t)

	for _, name := range []string{"", "x", "9lives", "has space", "bad!"} {
		_, err := f.svc.ProvisionRole(context.Background(), CreateRoleRequest{Name: name}, admin)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
}

func TestPrivilegeService_SetPrivilegeTouchesOneRow(t *testing.T) {
	f := newPrivilegeFixture(t)
	ctx := context.Background()
	_, err := f.svc.ProvisionRole(ctx, CreateRoleRequest{Name: "reviewer"}, admin)
	require.NoError(t, err)
	before := f.rows(t, "reviewer")

	allowed := true
	res, err := f.svc.SetPrivilege(ctx, "reviewer", SetPrivilegeRequest{Page: "invoices", Operation: "read", Allowed: &allowed}, admin)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	after := f.rows(t, "reviewer")
	require.Len(t, after, len(before))
	changed := 0
	for i := range after {
		if after[i].Allowed != before[i].Allowed {
			changed++
			assert.Equal(t, model.PageInvoices, after[i].PageName)
			assert.Equal(t, model.OpRead, after[i].Operation)
		}
	}
	assert.Equal(t, 1, changed)
}

func TestPrivilegeService_SetPrivilegeIsVisibleToPolicyImmediately(t *testing.T) {
	f := newPrivilegeFixture(t)
	ctx := context.Background()
	_, err := f.svc.ProvisionRole(ctx, CreateRoleRequest{Name: "reviewer"}, admin)
	require.NoError(t, err)

	assert.False(t, f.policy.HasCapability(ctx, "reviewer", model.PageTasks, model.OpUpdate))

	allowed := true
	_, err = f.svc.SetPrivilege(ctx, "reviewer", SetPrivilegeRequest{Page: "tasks", Operation: "update", Allowed: &allowed}, admin)
	require.NoError(t, err)
	assert.True(t, f.policy.HasCapability(ctx, "reviewer", model.PageTasks, model.OpUpdate))

	allowed = false
	_, err = f.svc.SetPrivilege(ctx, "reviewer", SetPrivilegeRequest{Page: "tasks", Operation: "update", Allowed: &allowed}, admin)
	require.NoError(t, err)
	assert.False(t, f.policy.HasCapability(ctx, "reviewer", model.PageTasks, model.OpUpdate))
}

func TestPrivilegeService_SetPrivilegeErrors(t *testing.T) {
	f := newPrivilegeFixture(t)
	ctx := context.Background()
	allowed := true

	_, err := f.svc.SetPrivilege(ctx, "nobody", SetPrivilegeRequest{Page: "tasks", Operation: "read", Allowed: &allowed}, admin)
	assert.ErrorIs(t, err, ErrPrivilegeNotFound)

	_, err = f.svc.SetPrivilege(ctx, "nobody", SetPrivilegeRequest{Page: "roles", Operation: "read", Allowed: &allowed}, admin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.SetPrivilege(ctx, "nobody", SetPrivilegeRequest{Page: "tasks", Operation: "approve", Allowed: &allowed}, admin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.SetPrivilege(ctx, "nobody", SetPrivilegeRequest{Page: "tasks", Operation: "read"}, admin)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPrivilegeService_SeedDefaults(t *testing.T) {
	f := newPrivilegeFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SeedDefaults(ctx))
	require.NoError(t, f.svc.SeedDefaults(ctx))

	roles, err := f.svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 5)

	var total int64
	require.NoError(t, f.db.Model(&model.RolePrivilege{}).Count(&total).Error)
	assert.Equal(t, int64(5*cellsPerRole), total)

	adminRole, err := f.repo.FindRoleByName(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, adminRole.IsSuperuser)
	assert.True(t, adminRole.IsSystem)

	assert.True(t, f.policy.HasCapability(ctx, model.RoleAdmin, model.PageWages, model.OpDelete))
	assert.False(t, f.policy.HasCapability(ctx, model.RoleAssociate, model.PageWages, model.OpDelete))
}

func TestPrivilegeService_Matrix(t *testing.T) {
	f := newPrivilegeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SeedDefaults(ctx))

	m, err := f.svc.Matrix(ctx, model.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, m.Role.Name)
	assert.Len(t, m.Privileges, len(model.AllPages))
	assert.Equal(t, map[string]bool{"create": false, "read": false, "update": false, "delete": false}, m.Privileges["clients"])

	_, err = f.svc.Matrix(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrivilegeService_DeleteRole(t *testing.T) {
	f := newPrivilegeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SeedDefaults(ctx))

	assert.ErrorIs(t, f.svc.DeleteRole(ctx, model.RoleManager, admin), ErrSystemRole)
	assert.ErrorIs(t, f.svc.DeleteRole(ctx, "nobody", admin), ErrNotFound)

	_, err := f.svc.ProvisionRole(ctx, CreateRoleRequest{Name: "reviewer"}, admin)
	require.NoError(t, err)
	user := model.User{Email: "r@example.com", FullName: "R", Password: "x"}
	require.NoError(t, f.db.Create(&user).Error)
	require.NoError(t, f.db.Create(&model.UserRole{UserID: user.ID, RoleName: "reviewer"}).Error)

	require.NoError(t, f.svc.DeleteRole(ctx, "reviewer", admin))
	assert.Empty(t, f.rows(t, "reviewer"))
	assert.Zero(t, testutil.Count(t, f.db, &model.UserRole{}, "role_name = ?", "reviewer"))
	assert.Zero(t, testutil.Count(t, f.db, &model.Role{}, "name = ?", "reviewer"))
}
