package handler

import (
	"context"
	"net/http"

	"opsdesk/internal/access"
	"opsdesk/internal/middleware"
	"opsdesk/internal/model"
	"opsdesk/internal/service"
	"opsdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CascadeHandler struct {
	cascadeService service.CascadeService
	auth           *middleware.Auth
	log            *zap.Logger
}

func NewCascadeHandler(cascadeService service.CascadeService, auth *middleware.Auth, log *zap.Logger) *CascadeHandler {
	return &CascadeHandler{cascadeService: cascadeService, auth: auth, log: log.Named("cascade")}
}

func (h *CascadeHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api", h.auth.Authenticate())
	{
		api.DELETE("/projects/:id", h.auth.RequireCapability(model.PageProjects, model.OpDelete), h.DeleteProject)
		api.DELETE("/clients/:id", h.auth.RequireCapability(model.PageClients, model.OpDelete), h.DeleteClient)
	}
}

// DeleteProject removes a project and everything that depends on it
// @Summary      Delete project
// @Description  Deletes time entries, comments, sprint and invoice links, tasks, sprints, invoices and payments of the project, then the project, in one transaction. An id that no longer exists, including one removed by a concurrent delete, returns 404; a root row gone only at the final step still counts as success.
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  response.Response{data=service.CascadeResult}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response  "store error prefixed with the failing step"
// @Router       /api/projects/{id} [delete]
func (h *CascadeHandler) DeleteProject(c *gin.Context) {
	h.run(c, "project", h.cascadeService.DeleteProject)
}

// DeleteClient removes a client, all of its projects and everything billed to it
// @Summary      Delete client
// @Tags         clients
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Client ID"
// @Success      200  {object}  response.Response{data=service.CascadeResult}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response  "store error prefixed with the failing step"
// @Router       /api/clients/{id} [delete]
func (h *CascadeHandler) DeleteClient(c *gin.Context) {
	h.run(c, "client", h.cascadeService.DeleteClient)
}

type cascadeFunc func(ctx context.Context, id string, actor access.Subject) (*service.CascadeResult, error)

// run detaches the deletion from the request so a caller navigating away
// does not abort it halfway.
func (h *CascadeHandler) run(c *gin.Context, kind string, fn cascadeFunc) {
	actor, _ := middleware.SubjectFrom(c)
	id := c.Param("id")

	res, err := fn(context.WithoutCancel(c.Request.Context()), id, actor)
	if err != nil {
		if c.Request.Context().Err() != nil {
			h.log.Warn("cascade failed after caller left", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		}
		respondError(c, err)
		return
	}
	if c.Request.Context().Err() != nil {
		h.log.Info("cascade finished after caller left", zap.String("kind", kind), zap.String("id", id))
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
