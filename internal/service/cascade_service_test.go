package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsdesk/internal/access"
	"opsdesk/internal/model"
	"opsdesk/internal/repository"
	"opsdesk/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var operator = access.Subject{UserID: uuid.NewString(), Email: "ops@example.com", Role: model.RoleManager}

var projectSteps = []string{
	StepTimeEntries, StepTaskComments, StepSprintTasks, StepInvoiceTasks,
	StepTasks, StepSprints, StepInvoices, StepPayments, StepProjects,
}

type cascadeFixture struct {
	db          *gorm.DB
	svc         CascadeService
	broadcaster *recordingBroadcaster
	notifier    *recordingNotifier
	order       []string
}

func newCascadeFixture(t *testing.T, repo func(*gorm.DB) repository.CascadeRepository) *cascadeFixture {
	t.Helper()
	f := &cascadeFixture{
		db:          testutil.NewDB(t),
		broadcaster: &recordingBroadcaster{},
		notifier:    &recordingNotifier{},
	}
	if repo == nil {
		repo = repository.NewCascadeRepository
	}
	f.svc = NewCascadeService(
		repo(f.db),
		repository.NewTransactionManager(f.db),
		newActivity(f.db),
		f.broadcaster,
		f.notifier,
		zap.NewNop(),
		WithStepObserver(func(step string, _ int64) { f.order = append(f.order, step) }),
	)
	return f
}

func assertProjectGone(t *testing.T, db *gorm.DB, g testutil.ProjectGraph) {
	t.Helper()
	taskIDs := g.TaskIDs()
	assert.Zero(t, testutil.Count(t, db, &model.Project{}, "id = ?", g.Project.ID))
	assert.Zero(t, testutil.Count(t, db, &model.Task{}, "project_id = ?", g.Project.ID))
	assert.Zero(t, testutil.Count(t, db, &model.TimeEntry{}, "task_id IN ?", taskIDs))
	assert.Zero(t, testutil.Count(t, db, &model.TaskComment{}, "task_id IN ?", taskIDs))
	assert.Zero(t, testutil.Count(t, db, &model.Sprint{}, "project_id = ?", g.Project.ID))
	assert.Zero(t, testutil.Count(t, db, &model.SprintTask{}, "sprint_id = ?", g.Sprint.ID))
	assert.Zero(t, testutil.Count(t, db, &model.Invoice{}, "project_id = ?", g.Project.ID))
	assert.Zero(t, testutil.Count(t, db, &model.InvoiceTask{}, "invoice_id = ?", g.Invoice.ID))
	assert.Zero(t, testutil.Count(t, db, &model.Payment{}, "project_id = ?", g.Project.ID))
}

func TestCascadeService_DeleteProjectRemovesWholeAggregate(t *testing.T) {
	f := newCascadeFixture(t, nil)
	doomed := testutil.SeedProject(t, f.db, nil)
	kept := testutil.SeedProject(t, f.db, &doomed.Client)

	res, err := f.svc.DeleteProject(context.Background(), doomed.Project.ID.String(), operator)
	require.NoError(t, err)

	assertProjectGone(t, f.db, doomed)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.Project{}, "id = ?", kept.Project.ID))
	assert.Equal(t, int64(2), testutil.Count(t, f.db, &model.Task{}, "project_id = ?", kept.Project.ID))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.Client{}, "id = ?", doomed.Client.ID))

	assert.Equal(t, "Website", res.EntityName)
	assert.Equal(t, projectSteps, f.order)
	require.Len(t, res.Steps, len(projectSteps))
	assert.Equal(t, StepTimeEntries, res.Steps[0].Step)
	assert.Equal(t, int64(2), res.Steps[0].Rows)
	assert.Equal(t, int64(1), res.Steps[len(res.Steps)-1].Rows)

	assert.Equal(t, int64(1), activityCount(t, f.db, model.EntityProject))
	assert.Equal(t, []string{"projects.deleted"}, f.broadcaster.topics)
	assert.Len(t, f.notifier.subjects, 1)
}

func TestCascadeService_DeleteProjectOnPartialState(t *testing.T) {
	f := newCascadeFixture(t, nil)
	g := testutil.SeedProject(t, f.db, nil)

	// An earlier run got as far as the task children before failing.
	require.NoError(t, f.db.Where("task_id IN ?", g.TaskIDs()).Delete(&model.TimeEntry{}).Error)
	require.NoError(t, f.db.Where("task_id IN ?", g.TaskIDs()).Delete(&model.TaskComment{}).Error)

	res, err := f.svc.DeleteProject(context.Background(), g.Project.ID.String(), operator)
	require.NoError(t, err)

	assertProjectGone(t, f.db, g)
	assert.Zero(t, res.Steps[0].Rows)
	assert.Zero(t, res.Steps[1].Rows)
}

func TestCascadeService_DeleteProjectWithoutDependents(t *testing.T) {
	f := newCascadeFixture(t, nil)
	client := model.Client{Name: "Solo"}
	require.NoError(t, f.db.Create(&client).Error)
	project := model.Project{ClientID: client.ID, Name: "Empty"}
	require.NoError(t, f.db.Create(&project).Error)

	_, err := f.svc.DeleteProject(context.Background(), project.ID.String(), operator)
	require.NoError(t, err)
	assert.Zero(t, testutil.Count(t, f.db, &model.Project{}, "id = ?", project.ID))
}

func TestCascadeService_DeleteProjectMissingRoot(t *testing.T) {
	f := newCascadeFixture(t, nil)

	_, err := f.svc.DeleteProject(context.Background(), uuid.NewString(), operator)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.DeleteProject(context.Background(), "not-a-uuid", operator)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.order)
	assert.Empty(t, f.broadcaster.topics)
	assert.Empty(t, f.notifier.subjects)
}

func TestCascadeService_DeleteClient(t *testing.T) {
	f := newCascadeFixture(t, nil)
	first := testutil.SeedProject(t, f.db, nil)
	second := testutil.SeedProject(t, f.db, &first.Client)

	// Billed to the client directly, outside any project.
	direct := model.Invoice{InvoiceNo: "INV-DIRECT", ClientID: first.Client.ID, TotalAmount: decimal.NewFromInt(90)}
	require.NoError(t, f.db.Create(&direct).Error)
	require.NoError(t, f.db.Create(&model.InvoiceTask{InvoiceID: direct.ID, TaskID: second.Tasks[0].ID}).Error)
	require.NoError(t, f.db.Create(&model.Payment{ClientID: first.Client.ID, Amount: decimal.NewFromInt(90), PaidAt: time.Now().UTC()}).Error)

	other := testutil.SeedProject(t, f.db, nil)

	res, err := f.svc.DeleteClient(context.Background(), first.Client.ID.String(), operator)
	require.NoError(t, err)

	assertProjectGone(t, f.db, first)
	assertProjectGone(t, f.db, second)
	assert.Zero(t, testutil.Count(t, f.db, &model.Client{}, "id = ?", first.Client.ID))
	assert.Zero(t, testutil.Count(t, f.db, &model.Invoice{}, "client_id = ?", first.Client.ID))
	assert.Zero(t, testutil.Count(t, f.db, &model.Payment{}, "client_id = ?", first.Client.ID))

	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.Project{}, "id = ?", other.Project.ID))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.Payment{}, "client_id = ?", other.Client.ID))

	assert.Equal(t, append(append([]string{}, projectSteps...), StepClient), f.order)
	assert.Equal(t, StepClient, res.Steps[len(res.Steps)-1].Step)
	assert.Equal(t, []string{"clients.deleted"}, f.broadcaster.topics)
	assert.Equal(t, int64(1), activityCount(t, f.db, model.EntityClient))
}

// failingRepo breaks one cascade step.
type failingRepo struct {
	repository.CascadeRepository
}

func (failingRepo) DeleteSprints(context.Context, repository.CascadeScope) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestCascadeService_FailureRollsBackEarlierSteps(t *testing.T) {
	f := newCascadeFixture(t, func(db *gorm.DB) repository.CascadeRepository {
		return failingRepo{repository.NewCascadeRepository(db)}
	})
	g := testutil.SeedProject(t, f.db, nil)

	_, err := f.svc.DeleteProject(context.Background(), g.Project.ID.String(), operator)
	require.Error(t, err)
	assert.Equal(t, "delete project: delete sprints: connection reset", err.Error())

	// Steps before sprints ran, and were rolled back.
	assert.Equal(t, []string{StepTimeEntries, StepTaskComments, StepSprintTasks, StepInvoiceTasks, StepTasks}, f.order)
	assert.Equal(t, int64(2), testutil.Count(t, f.db, &model.TimeEntry{}, "task_id IN ?", g.TaskIDs()))
	assert.Equal(t, int64(2), testutil.Count(t, f.db, &model.Task{}, "project_id = ?", g.Project.ID))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &model.SprintTask{}, "sprint_id = ?", g.Sprint.ID))
	assert.Zero(t, activityCount(t, f.db, model.EntityProject))
	assert.Empty(t, f.broadcaster.topics)
	assert.Empty(t, f.notifier.subjects)
}

// mockCascadeRepo records the order of calls made against the store.
type mockCascadeRepo struct {
	mock.Mock
}

func (m *mockCascadeRepo) FindProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*model.Project)
	return p, args.Error(1)
}

func (m *mockCascadeRepo) FindClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*model.Client)
	return c, args.Error(1)
}

func (m *mockCascadeRepo) ResolveProjectScope(ctx context.Context, id uuid.UUID) (repository.CascadeScope, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(repository.CascadeScope), args.Error(1)
}

func (m *mockCascadeRepo) ResolveClientScope(ctx context.Context, id uuid.UUID) (repository.CascadeScope, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(repository.CascadeScope), args.Error(1)
}

func (m *mockCascadeRepo) step(name string, ctx context.Context, scope repository.CascadeScope) (int64, error) {
	args := m.MethodCalled(name, ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCascadeRepo) DeleteTimeEntries(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeleteTimeEntries", ctx, s)
}

func (m *mockCascadeRepo) DeleteTaskComments(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeleteTaskComments", ctx, s)
}

func (m *mockCascadeRepo) DeleteSprintTasks(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeleteSprintTasks", ctx, s)
}

func (m *mockCascadeRepo) DeleteInvoiceTasks(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeleteInvoiceTasks", ctx, s)
}

func (m *mockCascadeRepo) DeleteTasks(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeleteTasks", ctx, s)
}

func (m *mockCascadeRepo) DeleteSprints(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeleteSprints", ctx, s)
}

func (m *mockCascadeRepo) DeleteInvoices(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeleteInvoices", ctx, s)
}

func (m *mockCascadeRepo) DeletePayments(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeletePayments", ctx, s)
}

func (m *mockCascadeRepo) DeleteProjects(ctx context.Context, s repository.CascadeScope) (int64, error) {
	return m.step("DeleteProjects", ctx, s)
}

func (m *mockCascadeRepo) DeleteClient(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

var mockSteps = []string{
	"DeleteTimeEntries", "DeleteTaskComments", "DeleteSprintTasks", "DeleteInvoiceTasks",
	"DeleteTasks", "DeleteSprints", "DeleteInvoices", "DeletePayments", "DeleteProjects",
}

func TestCascadeService_StopsAtFirstFailingStep(t *testing.T) {
	id := uuid.New()
	scope := repository.CascadeScope{ProjectIDs: []uuid.UUID{id}}
	boom := errors.New("boom")

	repo := &mockCascadeRepo{}
	var calls []string
	repo.On("FindProject", mock.Anything, id).Return(&model.Project{Name: "Website"}, nil)
	repo.On("ResolveProjectScope", mock.Anything, id).Return(scope, nil)
	for _, name := range mockSteps[:4] {
		name := name
		repo.On(name, mock.Anything, scope).Return(int64(1), nil).Run(func(mock.Arguments) { calls = append(calls, name) })
	}
	repo.On("DeleteTasks", mock.Anything, scope).Return(int64(0), boom).Run(func(mock.Arguments) { calls = append(calls, "DeleteTasks") })

	activity := &fakeActivity{}
	broadcaster := &recordingBroadcaster{}
	notifier := &recordingNotifier{}
	svc := NewCascadeService(repo, passthroughTx{}, activity, broadcaster, notifier, zap.NewNop())

	_, err := svc.DeleteProject(context.Background(), id.String(), operator)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "delete project: delete tasks: boom", err.Error())

	assert.Equal(t, mockSteps[:5], calls)
	for _, name := range mockSteps[5:] {
		repo.AssertNotCalled(t, name, mock.Anything, mock.Anything)
	}
	assert.Empty(t, activity.events)
	assert.Zero(t, activity.announced)
	assert.Empty(t, broadcaster.topics)
	assert.Empty(t, notifier.subjects)
}

func TestCascadeService_RootGoneAtFinalStepIsSuccess(t *testing.T) {
	id := uuid.New()
	scope := repository.CascadeScope{ProjectIDs: []uuid.UUID{id}}

	repo := &mockCascadeRepo{}
	repo.On("FindProject", mock.Anything, id).Return(&model.Project{Name: "Website"}, nil)
	repo.On("ResolveProjectScope", mock.Anything, id).Return(scope, nil)
	for _, name := range mockSteps {
		repo.On(name, mock.Anything, scope).Return(int64(0), nil)
	}

	activity := &fakeActivity{}
	svc := NewCascadeService(repo, passthroughTx{}, activity, nil, nil, zap.NewNop())

	res, err := svc.DeleteProject(context.Background(), id.String(), operator)
	require.NoError(t, err)
	assert.Zero(t, res.Steps[len(res.Steps)-1].Rows)
	assert.Len(t, activity.events, 1)
	assert.Equal(t, 1, activity.announced)
	repo.AssertExpectations(t)
}
