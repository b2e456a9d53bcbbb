package handler

import (
	"net/http"

	"opsdesk/internal/middleware"
	"opsdesk/internal/service"
	"opsdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type PrivilegeHandler struct {
	privilegeService service.PrivilegeService
	auth             *middleware.Auth
}

func NewPrivilegeHandler(privilegeService service.PrivilegeService, auth *middleware.Auth) *PrivilegeHandler {
	return &PrivilegeHandler{privilegeService: privilegeService, auth: auth}
}

func (h *PrivilegeHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/api/roles", h.auth.Authenticate(), h.auth.RequireSuperuser())
	{
		roles.GET("", h.ListRoles)
		roles.POST("", h.ProvisionRole)
		roles.GET("/:name/privileges", h.Matrix)
		roles.PUT("/:name/privileges", h.SetPrivilege)
		roles.DELETE("/:name", h.DeleteRole)
	}
}

// ListRoles returns every role
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/roles [get]
func (h *PrivilegeHandler) ListRoles(c *gin.Context) {
	roles, err := h.privilegeService.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// ProvisionRole creates a role with its full privilege grid, all denied
// @Summary      Provision role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRoleRequest  true  "Role"
// @Success      201      {object}  response.Response{data=service.RoleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/roles [post]
func (h *PrivilegeHandler) ProvisionRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor, _ := middleware.SubjectFrom(c)
	role, err := h.privilegeService.ProvisionRole(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, role))
}

// Matrix returns one role's privileges keyed by page and operation
// @Summary      Role privilege matrix
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        name  path      string  true  "Role name"
// @Success      200   {object}  response.Response{data=service.MatrixResponse}
// @Failure      404   {object}  response.Response
// @Router       /api/roles/{name}/privileges [get]
func (h *PrivilegeHandler) Matrix(c *gin.Context) {
	matrix, err := h.privilegeService.Matrix(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, matrix))
}

// SetPrivilege flips one (page, operation) cell of a role
// @Summary      Set privilege
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        name     path      string                       true  "Role name"
// @Param        payload  body      service.SetPrivilegeRequest  true  "Cell"
// @Success      200      {object}  response.Response{data=service.PrivilegeResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/roles/{name}/privileges [put]
func (h *PrivilegeHandler) SetPrivilege(c *gin.Context) {
	var req service.SetPrivilegeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor, _ := middleware.SubjectFrom(c)
	row, err := h.privilegeService.SetPrivilege(c.Request.Context(), c.Param("name"), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, row))
}

// DeleteRole removes a custom role, its privileges and its assignments
// @Summary      Delete role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        name  path      string  true  "Role name"
// @Success      200   {object}  response.Response
// @Failure      403   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /api/roles/{name} [delete]
func (h *PrivilegeHandler) DeleteRole(c *gin.Context) {
	actor, _ := middleware.SubjectFrom(c)
	if err := h.privilegeService.DeleteRole(c.Request.Context(), c.Param("name"), actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Role deleted successfully"}))
}
