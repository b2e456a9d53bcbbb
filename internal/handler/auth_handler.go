package handler

import (
	"net/http"
	"time"

	"opsdesk/internal/middleware"
	"opsdesk/internal/service"
	"opsdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	auth        *middleware.Auth
	tokenTTL    time.Duration
}

func NewAuthHandler(authService service.AuthService, auth *middleware.Auth, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, auth: auth, tokenTTL: tokenTTL}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/auth")
	{
		group.POST("/login", h.Login)
		group.POST("/logout", h.Logout)
		group.GET("/me", h.auth.Authenticate(), h.Me)
	}
}

// Login handles POST /api/auth/login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates by email and password. The token is returned and also set as an HttpOnly cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.auth.SetTokenCookie(c, res.Token, h.tokenTTL)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout handles POST /api/auth/logout
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.auth.ClearTokenCookie(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out"}))
}

// Me handles GET /api/auth/me
// @Summary      Current session
// @Description  Returns the signed-in user, the resolved role and the capability map the UI gates actions with
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.SessionResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	subject, _ := middleware.SubjectFrom(c)

	me, err := h.authService.Me(c.Request.Context(), subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, me))
}
