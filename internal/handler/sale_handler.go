package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/middleware"
	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/service"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// SaleAPI is the part of *service.SaleService used by SaleHandler.
type SaleAPI interface {
	Create(ctx context.Context, actor *models.User, req *service.CreateSaleRequest) (*models.Sale, error)
	Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Sale, error)
	List(ctx context.Context, actor *models.User, q service.SaleQuery) ([]models.Sale, utils.Pagination, error)
	ChangeStatus(ctx context.Context, actor *models.User, id primitive.ObjectID, status models.SaleStatus) (*models.Sale, error)
}

// SaleHandler serves point-of-sale endpoints.
type SaleHandler struct {
	saleService SaleAPI
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(saleService SaleAPI) *SaleHandler {
	return &SaleHandler{saleService: saleService}
}

// List handles GET /api/sales?status=&from=&to=&page=&limit=.
func (h *SaleHandler) List(c *gin.Context) {
	sales, pagination, err := h.saleService.List(c.Request.Context(), middleware.CurrentUser(c), service.SaleQuery{
		Status: c.Query("status"),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales, "pagination": pagination})
}

// Create handles POST /api/sales.
func (h *SaleHandler) Create(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sale, err := h.saleService.Create(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// Get handles GET /api/sales/:id.
func (h *SaleHandler) Get(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	sale, err := h.saleService.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// ChangeStatus handles PATCH /api/sales/:id/status.
func (h *SaleHandler) ChangeStatus(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	var req service.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sale, err := h.saleService.ChangeStatus(c.Request.Context(), middleware.CurrentUser(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
