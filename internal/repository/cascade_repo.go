package repository

import (
	"context"

	"opsdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CascadeScope is the dependent-id set of an aggregate root, resolved before
// any row is removed.
type CascadeScope struct {
	ClientID   *uuid.UUID // set only when the root is a client
	ProjectIDs []uuid.UUID
	TaskIDs    []uuid.UUID
	SprintIDs  []uuid.UUID
	InvoiceIDs []uuid.UUID
}

// CascadeRepository exposes one delete-by-foreign-key call per dependent
// table. Every delete is idempotent: an empty match removes nothing.
type CascadeRepository interface {
	FindProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	FindClient(ctx context.Context, id uuid.UUID) (*model.Client, error)
	ResolveProjectScope(ctx context.Context, projectID uuid.UUID) (CascadeScope, error)
	ResolveClientScope(ctx context.Context, clientID uuid.UUID) (CascadeScope, error)

	DeleteTimeEntries(ctx context.Context, scope CascadeScope) (int64, error)
	DeleteTaskComments(ctx context.Context, scope CascadeScope) (int64, error)
	DeleteSprintTasks(ctx context.Context, scope CascadeScope) (int64, error)
	DeleteInvoiceTasks(ctx context.Context, scope CascadeScope) (int64, error)
	DeleteTasks(ctx context.Context, scope CascadeScope) (int64, error)
	DeleteSprints(ctx context.Context, scope CascadeScope) (int64, error)
	DeleteInvoices(ctx context.Context, scope CascadeScope) (int64, error)
	DeletePayments(ctx context.Context, scope CascadeScope) (int64, error)
	DeleteProjects(ctx context.Context, scope CascadeScope) (int64, error)
	DeleteClient(ctx context.Context, id uuid.UUID) (int64, error)
}

type cascadeRepository struct {
	db *gorm.DB
}

func NewCascadeRepository(db *gorm.DB) CascadeRepository {
	return &cascadeRepository{db: db}
}

func (r *cascadeRepository) FindProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := GetDB(ctx, r.db).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *cascadeRepository) FindClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := GetDB(ctx, r.db).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *cascadeRepository) ResolveProjectScope(ctx context.Context, projectID uuid.UUID) (CascadeScope, error) {
	scope := CascadeScope{ProjectIDs: []uuid.UUID{projectID}}
	return scope, r.resolveChildren(ctx, &scope)
}

func (r *cascadeRepository) ResolveClientScope(ctx context.Context, clientID uuid.UUID) (CascadeScope, error) {
	scope := CascadeScope{ClientID: &clientID}
	if err := GetDB(ctx, r.db).Model(&model.Project{}).
		Where("client_id = ?", clientID).
		Pluck("id", &scope.ProjectIDs).Error; err != nil {
		return CascadeScope{}, err
	}
	return scope, r.resolveChildren(ctx, &scope)
}

func (r *cascadeRepository) resolveChildren(ctx context.Context, scope *CascadeScope) error {
	db := GetDB(ctx, r.db)

	if len(scope.ProjectIDs) > 0 {
		if err := db.Model(&model.Task{}).Where("project_id IN ?", scope.ProjectIDs).Pluck("id", &scope.TaskIDs).Error; err != nil {
			return err
		}
		if err := db.Model(&model.Sprint{}).Where("project_id IN ?", scope.ProjectIDs).Pluck("id", &scope.SprintIDs).Error; err != nil {
			return err
		}
	}

	invoices := db.Model(&model.Invoice{})
	switch {
	case scope.ClientID != nil && len(scope.ProjectIDs) > 0:
		invoices = invoices.Where("project_id IN ? OR client_id = ?", scope.ProjectIDs, *scope.ClientID)
	case scope.ClientID != nil:
		invoices = invoices.Where("client_id = ?", *scope.ClientID)
	case len(scope.ProjectIDs) > 0:
		invoices = invoices.Where("project_id IN ?", scope.ProjectIDs)
	default:
		return nil
	}
	return invoices.Pluck("id", &scope.InvoiceIDs).Error
}

func (r *cascadeRepository) DeleteTimeEntries(ctx context.Context, scope CascadeScope) (int64, error) {
	if len(scope.TaskIDs) == 0 {
		return 0, nil
	}
	res := GetDB(ctx, r.db).Where("task_id IN ?", scope.TaskIDs).Delete(&model.TimeEntry{})
	return res.RowsAffected, res.Error
}

func (r *cascadeRepository) DeleteTaskComments(ctx context.Context, scope CascadeScope) (int64, error) {
	if len(scope.TaskIDs) == 0 {
		return 0, nil
	}
	res := GetDB(ctx, r.db).Where("task_id IN ?", scope.TaskIDs).Delete(&model.TaskComment{})
	return res.RowsAffected, res.Error
}

// DeleteSprintTasks clears links from either side: the root's tasks placed in
// foreign sprints, and foreign tasks placed in the root's sprints.
func (r *cascadeRepository) DeleteSprintTasks(ctx context.Context, scope CascadeScope) (int64, error) {
	q, ok := linkFilter(GetDB(ctx, r.db), "sprint_id", scope.SprintIDs, scope.TaskIDs)
	if !ok {
		return 0, nil
	}
	res := q.Delete(&model.SprintTask{})
	return res.RowsAffected, res.Error
}

func (r *cascadeRepository) DeleteInvoiceTasks(ctx context.Context, scope CascadeScope) (int64, error) {
	q, ok := linkFilter(GetDB(ctx, r.db), "invoice_id", scope.InvoiceIDs, scope.TaskIDs)
	if !ok {
		return 0, nil
	}
	res := q.Delete(&model.InvoiceTask{})
	return res.RowsAffected, res.Error
}

func (r *cascadeRepository) DeleteTasks(ctx context.Context, scope CascadeScope) (int64, error) {
	if len(scope.ProjectIDs) == 0 {
		return 0, nil
	}
	res := GetDB(ctx, r.db).Where("project_id IN ?", scope.ProjectIDs).Delete(&model.Task{})
	return res.RowsAffected, res.Error
}

func (r *cascadeRepository) DeleteSprints(ctx context.Context, scope CascadeScope) (int64, error) {
	if len(scope.ProjectIDs) == 0 {
		return 0, nil
	}
	res := GetDB(ctx, r.db).Where("project_id IN ?", scope.ProjectIDs).Delete(&model.Sprint{})
	return res.RowsAffected, res.Error
}

func (r *cascadeRepository) DeleteInvoices(ctx context.Context, scope CascadeScope) (int64, error) {
	q, ok := ownerFilter(GetDB(ctx, r.db), scope)
	if !ok {
		return 0, nil
	}
	res := q.Delete(&model.Invoice{})
	return res.RowsAffected, res.Error
}

func (r *cascadeRepository) DeletePayments(ctx context.Context, scope CascadeScope) (int64, error) {
	q, ok := ownerFilter(GetDB(ctx, r.db), scope)
	if !ok {
		return 0, nil
	}
	res := q.Delete(&model.Payment{})
	return res.RowsAffected, res.Error
}

func (r *cascadeRepository) DeleteProjects(ctx context.Context, scope CascadeScope) (int64, error) {
	if len(scope.ProjectIDs) == 0 {
		return 0, nil
	}
	res := GetDB(ctx, r.db).Where("id IN ?", scope.ProjectIDs).Delete(&model.Project{})
	return res.RowsAffected, res.Error
}

func (r *cascadeRepository) DeleteClient(ctx context.Context, id uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Client{})
	return res.RowsAffected, res.Error
}

// linkFilter matches junction rows by either of their two keys.
func linkFilter(db *gorm.DB, ownerColumn string, ownerIDs, taskIDs []uuid.UUID) (*gorm.DB, bool) {
	switch {
	case len(ownerIDs) > 0 && len(taskIDs) > 0:
		return db.Where(ownerColumn+" IN ? OR task_id IN ?", ownerIDs, taskIDs), true
	case len(ownerIDs) > 0:
		return db.Where(ownerColumn+" IN ?", ownerIDs), true
	case len(taskIDs) > 0:
		return db.Where("task_id IN ?", taskIDs), true
	default:
		return db, false
	}
}

// ownerFilter matches invoices and payments belonging to the scope's projects
// or, for a client root, to the client directly.
func ownerFilter(db *gorm.DB, scope CascadeScope) (*gorm.DB, bool) {
	switch {
	case scope.ClientID != nil && len(scope.ProjectIDs) > 0:
		return db.Where("project_id IN ? OR client_id = ?", scope.ProjectIDs, *scope.ClientID), true
	case scope.ClientID != nil:
		return db.Where("client_id = ?", *scope.ClientID), true
	case len(scope.ProjectIDs) > 0:
		return db.Where("project_id IN ?", scope.ProjectIDs), true
	default:
		return db, false
	}
}
