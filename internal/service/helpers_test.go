package service

import (
	"context"
	"sync"
	"testing"

	"opsdesk/internal/model"
	"opsdesk/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	topics []string
}

func (b *recordingBroadcaster) Broadcast(topic string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
}

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *recordingNotifier) Notify(subject, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
}

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Invalidate(role string) {
	c.invalidated = append(c.invalidated, role)
}

// passthroughTx runs fn without a transaction, for tests over mocked stores.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeActivity struct {
	events    []ActivityEvent
	announced int
}

func (f *fakeActivity) Record(_ context.Context, ev ActivityEvent) (*model.ActivityLog, error) {
	f.events = append(f.events, ev)
	return &model.ActivityLog{ActionType: ev.ActionType, EntityType: ev.EntityType, EntityID: ev.EntityID}, nil
}

func (f *fakeActivity) Announce(_ context.Context, entry *model.ActivityLog) {
	if entry != nil {
		f.announced++
	}
}

func (f *fakeActivity) List(context.Context, string, int, int) ([]ActivityLogResponse, int64, error) {
	return nil, 0, nil
}

func newActivity(db *gorm.DB) ActivityService {
	return NewActivityService(repository.NewActivityRepository(db), nil, zap.NewNop())
}

func activityCount(t *testing.T, db *gorm.DB, entityType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.ActivityLog{}).Where("entity_type = ?", entityType).Count(&n).Error)
	return n
}
