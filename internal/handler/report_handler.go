package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/middleware"
	"github.com/GTDGit/apparel_tracker/internal/models"
)

// ReportAPI is the part of *service.ReportService used by ReportHandler.
type ReportAPI interface {
	Dashboard(ctx context.Context, actor *models.User) (*models.Dashboard, error)
	SaleReport(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Sale, error)
	SalesSummary(ctx context.Context, actor *models.User, from, to string) (*models.SalesSummary, error)
}

// ReportHandler serves dashboard and sales reports.
type ReportHandler struct {
	reportService ReportAPI
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService ReportAPI) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Dashboard handles GET /api/reports/dashboard.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	d, err := h.reportService.Dashboard(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Sale handles GET /api/reports/sale/:id.
func (h *ReportHandler) Sale(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	sale, err := h.reportService.SaleReport(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// SalesSummary handles GET /api/reports/sales-summary?from=&to=.
func (h *ReportHandler) SalesSummary(c *gin.Context) {
	summary, err := h.reportService.SalesSummary(c.Request.Context(), middleware.CurrentUser(c), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
