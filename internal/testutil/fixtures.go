package testutil

import (
	"testing"
	"time"

	"opsdesk/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ProjectGraph is a fully populated project aggregate: two tasks with time
// entries and comments, a sprint, an invoice with a task line and a payment.
type ProjectGraph struct {
	Client  model.Client
	Project model.Project
	Tasks   []model.Task
	Sprint  model.Sprint
	Invoice model.Invoice
	Payment model.Payment
}

// SeedProject creates a project graph under client, or under a new client
// when client is nil.
func SeedProject(t *testing.T, db *gorm.DB, client *model.Client) ProjectGraph {
	t.Helper()

	var g ProjectGraph
	if client == nil {
		g.Client = model.Client{Name: "Acme"}
		require.NoError(t, db.Create(&g.Client).Error)
	} else {
		g.Client = *client
	}

	g.Project = model.Project{ClientID: g.Client.ID, Name: "Website"}
	require.NoError(t, db.Create(&g.Project).Error)

	for _, title := range []string{"Design", "Build"} {
		task := model.Task{ProjectID: g.Project.ID, Title: title}
		require.NoError(t, db.Create(&task).Error)
		require.NoError(t, db.Create(&model.TimeEntry{TaskID: task.ID, Hours: decimal.NewFromInt(3), WorkedAt: time.Now().UTC()}).Error)
		require.NoError(t, db.Create(&model.TaskComment{TaskID: task.ID, Body: "looks good"}).Error)
		g.Tasks = append(g.Tasks, task)
	}

	g.Sprint = model.Sprint{ProjectID: g.Project.ID, Name: "Sprint 1"}
	require.NoError(t, db.Create(&g.Sprint).Error)
	require.NoError(t, db.Create(&model.SprintTask{SprintID: g.Sprint.ID, TaskID: g.Tasks[0].ID}).Error)

	projectID := g.Project.ID
	g.Invoice = model.Invoice{InvoiceNo: "INV-" + uuid.NewString()[:8], ClientID: g.Client.ID, ProjectID: &projectID, TotalAmount: decimal.NewFromInt(500)}
	require.NoError(t, db.Create(&g.Invoice).Error)
	require.NoError(t, db.Create(&model.InvoiceTask{InvoiceID: g.Invoice.ID, TaskID: g.Tasks[1].ID}).Error)

	g.Payment = model.Payment{ClientID: g.Client.ID, ProjectID: &projectID, Amount: decimal.NewFromInt(500), PaidAt: time.Now().UTC()}
	require.NoError(t, db.Create(&g.Payment).Error)

	return g
}

func (g ProjectGraph) TaskIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(g.Tasks))
	for _, task := range g.Tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

// Count returns the number of m rows matching query.
func Count(t *testing.T, db *gorm.DB, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Where(query, args...).Count(&n).Error)
	return n
}
