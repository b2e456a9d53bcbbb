package handler

import (
	"context"
	"net/http"

	"opsdesk/internal/middleware"
	"opsdesk/internal/model"
	"opsdesk/internal/service"
	"opsdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type FinanceHandler struct {
	financeService service.FinanceService
	auth           *middleware.Auth
}

func NewFinanceHandler(financeService service.FinanceService, auth *middleware.Auth) *FinanceHandler {
	return &FinanceHandler{financeService: financeService, auth: auth}
}

func (h *FinanceHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/finance", h.auth.Authenticate())
	{
		group.GET("/revenue", h.auth.RequireCapability(model.PagePayments, model.OpRead), h.Revenue)
		group.GET("/wages", h.auth.RequireCapability(model.PageWages, model.OpRead), h.Wages)
	}
}

// Revenue sums payments matching the filters
// @Summary      Revenue
// @Tags         finance
// @Security     BearerAuth
// @Produce      json
// @Param        client_id  query     string  false  "Client ID"
// @Param        from       query     string  false  "First day, YYYY-MM-DD"
// @Param        to         query     string  false  "Last day, YYYY-MM-DD"
// @Success      200        {object}  response.Response{data=service.ReportResponse}
// @Failure      400        {object}  response.Response
// @Router       /api/finance/revenue [get]
func (h *FinanceHandler) Revenue(c *gin.Context) {
	h.report(c, h.financeService.Revenue)
}

// Wages sums wages matching the filters
// @Summary      Wages
// @Tags         finance
// @Security     BearerAuth
// @Produce      json
// @Param        employee_id  query     string  false  "Employee ID"
// @Param        from         query     string  false  "First day, YYYY-MM-DD"
// @Param        to           query     string  false  "Last day, YYYY-MM-DD"
// @Success      200          {object}  response.Response{data=service.ReportResponse}
// @Failure      400          {object}  response.Response
// @Router       /api/finance/wages [get]
func (h *FinanceHandler) Wages(c *gin.Context) {
	h.report(c, h.financeService.Wages)
}

func (h *FinanceHandler) report(c *gin.Context, fn func(context.Context, service.ReportQuery) (*service.ReportResponse, error)) {
	var q service.ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	res, err := fn(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
