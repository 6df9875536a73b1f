package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/nutrilog/backend/internal/dispatch"
	"github.com/pageza/nutrilog/backend/internal/model"
	"github.com/pageza/nutrilog/backend/internal/openfoodfacts"
	"github.com/pageza/nutrilog/backend/internal/repository"
)

// FoodSource looks products up in the external food database
type FoodSource interface {
	Product(ctx context.Context, barcode string) (*model.ExternalFood, error)
}

// ImageLinker turns a stored image reference into a URL the browser can load
type ImageLinker interface {
	URL(ctx context.Context, key string) (string, error)
}

// FoodController exposes the food catalog
type FoodController struct {
	foods  *repository.FoodRepository
	source FoodSource
	images ImageLinker
	log    *zap.Logger
}

// NewFoodController creates a new FoodController. images may be nil.
func NewFoodController(foods *repository.FoodRepository, source FoodSource, images ImageLinker, log *zap.Logger) *FoodController {
	return &FoodController{
		foods:  foods,
		source: source,
		images: images,
		log:    log.Named("food_controller"),
	}
}

// Actions implements dispatch.Controller
func (h *FoodController) Actions() map[string]dispatch.Action {
	return map[string]dispatch.Action{
		"list":   h.List,
		"search": h.Search,
		"show":   h.Show,
		"save":   h.Save,
		"import": h.Import,
		"lookup": h.Lookup,
		"delete": h.Delete,
	}
}

type listQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

type idParam struct {
	ID int64 `form:"id" json:"id" binding:"required,gt=0"`
}

type barcodeParam struct {
	Barcode string `form:"barcode" json:"barcode" binding:"required"`
}

func (h *FoodController) List(c *gin.Context) any {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return badRequest(c, err)
	}
	foods, err := h.foods.List(c.Request.Context(), repository.Page{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return failure(c, err)
	}
	total, err := h.foods.Count(c.Request.Context())
	if err != nil {
		return failure(c, err)
	}
	return gin.H{"success": true, "foods": foods, "total": total}
}

func (h *FoodController) Search(c *gin.Context) any {
	foods, err := h.foods.SearchByName(c.Request.Context(), c.Query("q"))
	if err != nil {
		return failure(c, err)
	}
	return gin.H{"success": true, "foods": foods}
}

func (h *FoodController) Show(c *gin.Context) any {
	var p idParam
	if err := c.ShouldBindQuery(&p); err != nil {
		return badRequest(c, err)
	}
	food, err := h.foods.FindByID(c.Request.Context(), p.ID)
	if err != nil {
		return failure(c, err)
	}
	return gin.H{"success": true, "food": food, "image_url": h.imageURL(c.Request.Context(), food)}
}

func (h *FoodController) imageURL(ctx context.Context, food *model.FoodItem) string {
	if food.ImagePath != nil && *food.ImagePath != "" && h.images != nil {
		url, err := h.images.URL(ctx, *food.ImagePath)
		if err == nil {
			return url
		}
		h.log.Warn("failed to sign image url", zap.Int64("food_id", food.ID), zap.Error(err))
	}
	return food.Extra["image_url"]
}

func (h *FoodController) Save(c *gin.Context) any {
	var food model.FoodItem
	if err := c.ShouldBindJSON(&food); err != nil {
		return badRequest(c, err)
	}
	creating := food.ID == 0
	if err := h.foods.Save(c.Request.Context(), &food); err != nil {
		return failure(c, err)
	}
	if creating {
		c.Status(http.StatusCreated)
	}
	return gin.H{"success": true, "food": food}
}

// Import fetches a product by barcode from the external database and stores it.
// Known barcodes are answered without calling the provider.
func (h *FoodController) Import(c *gin.Context) any {
	var p barcodeParam
	if err := c.ShouldBind(&p); err != nil {
		return badRequest(c, err)
	}
	ctx := c.Request.Context()

	exists, err := h.foods.ExistsByBarcode(ctx, p.Barcode)
	if err != nil {
		return failure(c, err)
	}
	if exists {
		return gin.H{"success": true, "created": false, "barcode": p.Barcode}
	}

	rec, err := h.fetch(ctx, p.Barcode)
	if err != nil {
		return h.sourceFailure(c, err)
	}
	food, created, err := h.foods.ImportFromExternal(ctx, *rec)
	if err != nil {
		return failure(c, err)
	}
	if created {
		c.Status(http.StatusCreated)
	}
	return gin.H{"success": true, "created": created, "food": food}
}

// Lookup returns the external product without storing it
func (h *FoodController) Lookup(c *gin.Context) any {
	var p barcodeParam
	if err := c.ShouldBindQuery(&p); err != nil {
		return badRequest(c, err)
	}
	rec, err := h.fetch(c.Request.Context(), p.Barcode)
	if err != nil {
		return h.sourceFailure(c, err)
	}
	return gin.H{"success": true, "product": rec}
}

func (h *FoodController) fetch(ctx context.Context, barcode string) (*model.ExternalFood, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return h.source.Product(ctx, barcode)
}

func (h *FoodController) sourceFailure(c *gin.Context, err error) gin.H {
	if errors.Is(err, openfoodfacts.ErrProductNotFound) {
		c.Status(http.StatusNotFound)
		return gin.H{"success": false, "error": "product not found"}
	}
	h.log.Error("food source failed", zap.Error(err))
	c.Status(http.StatusBadGateway)
	return gin.H{"success": false, "error": "food database unavailable"}
}

func (h *FoodController) Delete(c *gin.Context) any {
	var p idParam
	if err := c.ShouldBind(&p); err != nil {
		return badRequest(c, err)
	}
	if err := h.foods.Delete(c.Request.Context(), p.ID); err != nil {
		return failure(c, err)
	}
	return gin.H{"success": true, "id": p.ID}
}
