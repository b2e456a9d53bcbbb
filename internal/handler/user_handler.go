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

type UserHandler struct {
	userService service.UserService
	auth        *middleware.Auth
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService, auth *middleware.Auth) *UserHandler {
	return &UserHandler{userService: userService, auth: auth}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/api/users", h.auth.Authenticate())
	{
		users.GET("", h.auth.RequireCapability(model.PageEmployees, model.OpRead), h.ListUsers)
		users.GET("/:id", h.auth.RequireCapability(model.PageEmployees, model.OpRead), h.GetUser)
		users.POST("", h.auth.RequireCapability(model.PageEmployees, model.OpCreate), h.CreateUser)
		users.PUT("/:id/roles", h.auth.RequireCapability(model.PageEmployees, model.OpUpdate), h.ReplaceRoles)
		users.DELETE("/:id", h.auth.RequireCapability(model.PageEmployees, model.OpDelete), h.DeleteUser)
	}
}

// CreateUser handles POST /api/users
// @Summary      Create a new user
// @Description  Creates a user with one or more existing roles and a hashed password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response  "superuser role requested by a non-superuser"
// @Failure      409      {object}  response.Response
// @Router       /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor, _ := middleware.SubjectFrom(c)
	user, err := h.userService.CreateUser(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// ListUsers handles GET /api/users
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)

	users, total, err := h.userService.ListUsers(c.Request.Context(), p.Offset, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, users, total, p.Page, p.Limit))
}

// GetUser handles GET /api/users/:id
// @Summary      Get user by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// ReplaceRoles handles PUT /api/users/:id/roles
// @Summary      Replace a user's roles
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "User ID"
// @Param        payload  body      service.ReplaceRolesRequest  true  "Roles"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response  "superuser role involved and caller is not a superuser"
// @Failure      404      {object}  response.Response
// @Router       /api/users/{id}/roles [put]
func (h *UserHandler) ReplaceRoles(c *gin.Context) {
	var req service.ReplaceRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor, _ := middleware.SubjectFrom(c)
	user, err := h.userService.ReplaceRoles(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser handles DELETE /api/users/:id
// @Summary      Delete user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, _ := middleware.SubjectFrom(c)
	if err := h.userService.DeleteUser(c.Request.Context(), c.Param("id"), actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "User deleted successfully"}))
}
