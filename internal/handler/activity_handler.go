package handler

import (
	"net/http"

	"opsdesk/internal/middleware"
	"opsdesk/internal/model"
	"opsdesk/internal/service"
	"opsdesk/pkg/pagination"
	"opsdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	activityService service.ActivityService
	auth            *middleware.Auth
}

func NewActivityHandler(activityService service.ActivityService, auth *middleware.Auth) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, auth: auth}
}

func (h *ActivityHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/activity", h.auth.Authenticate(), h.auth.RequireCapability(model.PageDashboard, model.OpRead))
	{
		group.GET("", h.List)
	}
}

// List returns the activity log newest first
// @Summary      Activity log
// @Tags         activity
// @Security     BearerAuth
// @Produce      json
// @Param        entity_type  query     string  false  "Filter by entity type (project, client, role, role_privilege, user)"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 50)"
// @Success      200          {object}  response.Response{data=response.Page}
// @Router       /api/activity [get]
func (h *ActivityHandler) List(c *gin.Context) {
	p := pagination.ParseWithLimit(c, 50)

	logs, total, err := h.activityService.List(c.Request.Context(), c.Query("entity_type"), p.Offset, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, total, p.Page, p.Limit))
}
