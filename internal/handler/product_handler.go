package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/middleware"
	"github.com/GTDGit/apparel_tracker/internal/models"
	"github.com/GTDGit/apparel_tracker/internal/service"
	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// maxImageBytes caps product image uploads.
const maxImageBytes = 5 << 20

// ProductAPI is the part of *service.ProductService used by ProductHandler.
type ProductAPI interface {
	List(ctx context.Context, actor *models.User, q service.ProductQuery) ([]models.Product, utils.Pagination, error)
	LowStock(ctx context.Context, actor *models.User, page, limit int) ([]models.Product, utils.Pagination, error)
	Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Product, error)
	Create(ctx context.Context, actor *models.User, req *service.CreateProductRequest) (*models.Product, error)
	Update(ctx context.Context, actor *models.User, id primitive.ObjectID, req *service.UpdateProductRequest) (*models.Product, error)
	Deactivate(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Product, error)
	AdjustStock(ctx context.Context, actor *models.User, id primitive.ObjectID, req *service.StockAdjustmentRequest) (*models.Product, error)
	Movements(ctx context.Context, actor *models.User, id primitive.ObjectID, limit int) ([]models.StockMovement, error)
	UploadImage(ctx context.Context, actor *models.User, id primitive.ObjectID, filename, contentType string, data []byte) (*models.Product, error)
}

// ProductHandler serves the product catalogue.
type ProductHandler struct {
	productService ProductAPI
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService ProductAPI) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// List handles GET /api/products. lowStock=true narrows the other filters to
// products at or below their reorder point.
func (h *ProductHandler) List(c *gin.Context) {
	q := service.ProductQuery{
		Category: c.Query("category"),
		Size:     c.Query("size"),
		Brand:    c.Query("brand"),
		Search:   c.Query("search"),
		Active:   c.Query("isActive"),
		LowStock: c.Query("lowStock") == "true",
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	}

	products, pagination, err := h.productService.List(c.Request.Context(), middleware.CurrentUser(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "pagination": pagination})
}

// LowStock handles GET /api/products/low-stock.
func (h *ProductHandler) LowStock(c *gin.Context) {
	products, pagination, err := h.productService.LowStock(c.Request.Context(), middleware.CurrentUser(c), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "pagination": pagination})
}

// Get handles GET /api/products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	p, err := h.productService.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create handles POST /api/products.
func (h *ProductHandler) Create(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	p, err := h.productService.Create(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update handles PUT /api/products/:id.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	p, err := h.productService.Update(c.Request.Context(), middleware.CurrentUser(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/products/:id. Products are deactivated, never removed.
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	p, err := h.productService.Deactivate(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deactivated", "product": p})
}

// AdjustStock handles POST /api/products/:id/stock.
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	var req service.StockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	p, err := h.productService.AdjustStock(c.Request.Context(), middleware.CurrentUser(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Movements handles GET /api/products/:id/movements.
func (h *ProductHandler) Movements(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}
	movements, err := h.productService.Movements(c.Request.Context(), middleware.CurrentUser(c), id, queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// UploadImage handles POST /api/products/:id/image (multipart field "image").
func (h *ProductHandler) UploadImage(c *gin.Context) {
	id, ok := objectIDParam(c)
	if !ok {
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Missing image file")
		return
	}
	if file.Size > maxImageBytes {
		utils.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Image must be at most 5MB")
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		respondError(c, err)
		return
	}
	contentType := http.DetectContentType(data)

	p, err := h.productService.UploadImage(c.Request.Context(), middleware.CurrentUser(c), id, file.Filename, contentType, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
