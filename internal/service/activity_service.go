package service

import (
	"context"
	"fmt"

	"opsdesk/internal/access"
	"opsdesk/internal/model"
	"opsdesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActivityPublisher fans activity records out to other systems. Implementations
// must not block the caller.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, entry model.ActivityLog)
}

// Broadcaster pushes invalidation events to connected UI sessions.
type Broadcaster interface {
	Broadcast(topic string, payload interface{})
}

type ActivityEvent struct {
	Actor       access.Subject
	ActionType  string
	EntityType  string
	EntityID    string
	EntityName  string
	Description string
	Comment     string
}

type ActivityLogResponse struct {
	ID          string `json:"id"`
	ActorID     string `json:"actor_id"`
	ActorEmail  string `json:"actor_email"`
	ActionType  string `json:"action_type"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	EntityName  string `json:"entity_name"`
	Description string `json:"description"`
	Comment     string `json:"comment,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type ActivityService interface {
	// Record appends to the log, inside the caller's transaction if any.
	Record(ctx context.Context, ev ActivityEvent) (*model.ActivityLog, error)
	// Announce publishes an already committed record.
	Announce(ctx context.Context, entry *model.ActivityLog)
	List(ctx context.Context, entityType string, offset, limit int) ([]ActivityLogResponse, int64, error)
}

type activityService struct {
	repo      repository.ActivityRepository
	publisher ActivityPublisher
	log       *zap.Logger
}

// NewActivityService creates a new ActivityService instance
func NewActivityService(repo repository.ActivityRepository, publisher ActivityPublisher, log *zap.Logger) ActivityService {
	return &activityService{repo: repo, publisher: publisher, log: log.Named("activity")}
}

func (s *activityService) Record(ctx context.Context, ev ActivityEvent) (*model.ActivityLog, error) {
	entry := &model.ActivityLog{
		ActorEmail:  ev.Actor.Email,
		ActionType:  ev.ActionType,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		EntityName:  ev.EntityName,
		Description: ev.Description,
		Comment:     ev.Comment,
	}
	if id, err := uuid.Parse(ev.Actor.UserID); err == nil {
		entry.ActorID = &id
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}
	return entry, nil
}

func (s *activityService) Announce(ctx context.Context, entry *model.ActivityLog) {
	if entry == nil || s.publisher == nil {
		return
	}
	s.publisher.PublishActivity(ctx, *entry)
	s.log.Debug("activity announced",
		zap.String("action", entry.ActionType),
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID),
	)
}

func (s *activityService) List(ctx context.Context, entityType string, offset, limit int) ([]ActivityLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, entityType, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}

	res := make([]ActivityLogResponse, 0, len(logs))
	for _, l := range logs {
		actorID := ""
		if l.ActorID != nil {
			actorID = l.ActorID.String()
		}
		res = append(res, ActivityLogResponse{
			ID:          l.ID.String(),
			ActorID:     actorID,
			ActorEmail:  l.ActorEmail,
			ActionType:  l.ActionType,
			EntityType:  l.EntityType,
			EntityID:    l.EntityID,
			EntityName:  l.EntityName,
			Description: l.Description,
			Comment:     l.Comment,
			CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return res, total, nil
}
