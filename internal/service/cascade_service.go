package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opsdesk/internal/access"
	"opsdesk/internal/model"
	"opsdesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier hands a message to the outbound mail channel without waiting.
type Notifier interface {
	Notify(subject, body string)
}

// Cascade step names, in the order they run.
const (
	StepTimeEntries  = "time_entries"
	StepTaskComments = "task_comments"
	StepSprintTasks  = "sprint_tasks"
	StepInvoiceTasks = "invoice_tasks"
	StepTasks        = "tasks"
	StepSprints      = "sprints"
	StepInvoices     = "invoices"
	StepPayments     = "payments"
	StepProjects     = "projects"
	StepClient       = "client"
)

// StepObserver is told about every step after it succeeds.
type StepObserver func(step string, rows int64)

type CascadeStepResult struct {
	Step string `json:"step"`
	Rows int64  `json:"rows"`
}

type CascadeResult struct {
	EntityType string              `json:"entity_type"`
	EntityID   string              `json:"entity_id"`
	EntityName string              `json:"entity_name"`
	Steps      []CascadeStepResult `json:"steps"`
}

type CascadeService interface {
	DeleteProject(ctx context.Context, projectID string, actor access.Subject) (*CascadeResult, error)
	DeleteClient(ctx context.Context, clientID string, actor access.Subject) (*CascadeResult, error)
}

type cascadeService struct {
	repo        repository.CascadeRepository
	txManager   repository.TransactionManager
	activity    ActivityService
	broadcaster Broadcaster
	notifier    Notifier
	observer    StepObserver
	log         *zap.Logger
}

type CascadeOption func(*cascadeService)

func WithStepObserver(o StepObserver) CascadeOption {
	return func(s *cascadeService) { s.observer = o }
}

func NewCascadeService(
	repo repository.CascadeRepository,
	txManager repository.TransactionManager,
	activity ActivityService,
	broadcaster Broadcaster,
	notifier Notifier,
	log *zap.Logger,
	opts ...CascadeOption,
) CascadeService {
	s := &cascadeService{
		repo:        repo,
		txManager:   txManager,
		activity:    activity,
		broadcaster: broadcaster,
		notifier:    notifier,
		log:         log.Named("cascade"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type cascadeStep struct {
	name string
	run  func(ctx context.Context, scope repository.CascadeScope) (int64, error)
}

// steps lists the dependent tables leaf first. A table only runs after every
// table that references it.
func (s *cascadeService) steps() []cascadeStep {
	return []cascadeStep{
		{StepTimeEntries, s.repo.DeleteTimeEntries},
		{StepTaskComments, s.repo.DeleteTaskComments},
		{StepSprintTasks, s.repo.DeleteSprintTasks},
		{StepInvoiceTasks, s.repo.DeleteInvoiceTasks},
		{StepTasks, s.repo.DeleteTasks},
		{StepSprints, s.repo.DeleteSprints},
		{StepInvoices, s.repo.DeleteInvoices},
		{StepPayments, s.repo.DeletePayments},
		{StepProjects, s.repo.DeleteProjects},
	}
}

func (s *cascadeService) DeleteProject(ctx context.Context, projectID string, actor access.Subject) (*CascadeResult, error) {
	id, err := uuid.Parse(projectID)
	if err != nil {
		return nil, validationError("invalid project id '%s'", projectID)
	}

	result := &CascadeResult{EntityType: model.EntityProject, EntityID: id.String()}
	var entry *model.ActivityLog

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		project, err := s.repo.FindProject(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("project %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("failed to fetch project: %w", err)
		}
		result.EntityName = project.Name

		scope, err := s.repo.ResolveProjectScope(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to resolve project dependents: %w", err)
		}

		if err := s.run(txCtx, s.steps(), scope, result); err != nil {
			return err
		}

		entry, err = s.activity.Record(txCtx, ActivityEvent{
			Actor:       actor,
			ActionType:  model.ActionDelete,
			EntityType:  model.EntityProject,
			EntityID:    id.String(),
			EntityName:  project.Name,
			Description: fmt.Sprintf("Deleted project '%s' and its dependents (%s)", project.Name, summarize(result.Steps)),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete project: %w", err)
	}

	s.afterDelete(ctx, "projects.deleted", result, entry, actor)
	return result, nil
}

// DeleteClient removes every project chain of the client together with the
// invoices and payments billed to the client directly, then the client row.
func (s *cascadeService) DeleteClient(ctx context.Context, clientID string, actor access.Subject) (*CascadeResult, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, validationError("invalid client id '%s'", clientID)
	}

	result := &CascadeResult{EntityType: model.EntityClient, EntityID: id.String()}
	var entry *model.ActivityLog

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		client, err := s.repo.FindClient(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("client %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("failed to fetch client: %w", err)
		}
		result.EntityName = client.Name

		scope, err := s.repo.ResolveClientScope(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to resolve client dependents: %w", err)
		}

		steps := append(s.steps(), cascadeStep{StepClient, func(ctx context.Context, _ repository.CascadeScope) (int64, error) {
			return s.repo.DeleteClient(ctx, id)
		}})
		if err := s.run(txCtx, steps, scope, result); err != nil {
			return err
		}

		entry, err = s.activity.Record(txCtx, ActivityEvent{
			Actor:       actor,
			ActionType:  model.ActionDelete,
			EntityType:  model.EntityClient,
			EntityID:    id.String(),
			EntityName:  client.Name,
			Description: fmt.Sprintf("Deleted client '%s' and its dependents (%s)", client.Name, summarize(result.Steps)),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete client: %w", err)
	}

	s.afterDelete(ctx, "clients.deleted", result, entry, actor)
	return result, nil
}

func (s *cascadeService) run(ctx context.Context, steps []cascadeStep, scope repository.CascadeScope, result *CascadeResult) error {
	for _, step := range steps {
		rows, err := step.run(ctx, scope)
		if err != nil {
			return fmt.Errorf("delete %s: %w", step.name, err)
		}
		result.Steps = append(result.Steps, CascadeStepResult{Step: step.name, Rows: rows})
		if s.observer != nil {
			s.observer(step.name, rows)
		}
	}

	// A root already gone here was removed by a concurrent deleter after our lookup.
	last := result.Steps[len(result.Steps)-1]
	if last.Rows == 0 {
		s.log.Info("root already deleted",
			zap.String("entity_type", result.EntityType),
			zap.String("entity_id", result.EntityID),
		)
	}
	return nil
}

func (s *cascadeService) afterDelete(ctx context.Context, topic string, result *CascadeResult, entry *model.ActivityLog, actor access.Subject) {
	s.log.Info("cascade delete completed",
		zap.String("entity_type", result.EntityType),
		zap.String("entity_id", result.EntityID),
		zap.String("actor", actor.Email),
		zap.String("steps", summarize(result.Steps)),
	)

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(topic, payload{"id": result.EntityID, "name": result.EntityName})
	}
	s.activity.Announce(ctx, entry)

	if s.notifier != nil {
		label := strings.ToUpper(result.EntityType[:1]) + result.EntityType[1:]
		subject := fmt.Sprintf("%s '%s' deleted", label, result.EntityName)
		body := fmt.Sprintf("%s deleted %s '%s' (%s).\n\nRemoved rows: %s\n",
			actor.Email, result.EntityType, result.EntityName, result.EntityID, summarize(result.Steps))
		s.notifier.Notify(subject, body)
	}
}

func summarize(steps []CascadeStepResult) string {
	parts := make([]string, 0, len(steps))
	for _, st := range steps {
		parts = append(parts, fmt.Sprintf("%s=%d", st.Step, st.Rows))
	}
	return strings.Join(parts, ", ")
}
