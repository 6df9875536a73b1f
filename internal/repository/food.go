package repository

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/nutrilog/backend/internal/database"
	"github.com/pageza/nutrilog/backend/internal/model"
)

// SearchLimit caps the number of foods returned by a name search
const SearchLimit = 20

// SourceOpenFoodFacts tags foods imported from the external provider
const SourceOpenFoodFacts = "openfoodfacts"

const foodOrder = "LOWER(nom) ASC, id ASC"

// Page selects a window of a listing. A Limit of zero or less means no limit,
// in which case Offset is ignored.
type Page struct {
	Limit  int
	Offset int
}

// FoodRepository reads and writes the food catalog
type FoodRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewFoodRepository creates a new FoodRepository instance
func NewFoodRepository(db *gorm.DB, log *zap.Logger) *FoodRepository {
	return &FoodRepository{db: db, log: log.Named("foods")}
}

// SearchByName returns foods whose name contains query, ignoring case, in alphabetical order.
// A blank query returns the first foods of the catalog.
func (r *FoodRepository) SearchByName(ctx context.Context, query string) ([]model.FoodItem, error) {
	foods := []model.FoodItem{}
	q := r.db.WithContext(ctx).Order(foodOrder).Limit(SearchLimit)
	if term := strings.TrimSpace(query); term != "" {
		q = q.Where(`LOWER(nom) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(term))+"%")
	}
	if err := q.Find(&foods).Error; err != nil {
		return []model.FoodItem{}, fail(r.log, "search foods", err, zap.String("query", query))
	}
	return foods, nil
}

// List returns foods in alphabetical order
func (r *FoodRepository) List(ctx context.Context, page Page) ([]model.FoodItem, error) {
	foods := []model.FoodItem{}
	q := r.db.WithContext(ctx).Order(foodOrder)
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
		if page.Offset > 0 {
			q = q.Offset(page.Offset)
		}
	}
	if err := q.Find(&foods).Error; err != nil {
		return []model.FoodItem{}, fail(r.log, "list foods", err, zap.Int("limit", page.Limit), zap.Int("offset", page.Offset))
	}
	return foods, nil
}

// Count returns the number of foods in the catalog
func (r *FoodRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.FoodItem{}).Count(&n).Error; err != nil {
		return 0, fail(r.log, "count foods", err)
	}
	return n, nil
}

// FindByID returns the food with the given id
func (r *FoodRepository) FindByID(ctx context.Context, id int64) (*model.FoodItem, error) {
	var food model.FoodItem
	if err := r.db.WithContext(ctx).Take(&food, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = notFound("food %d", id)
		}
		return nil, fail(r.log, "find food", err, zap.Int64("food_id", id))
	}
	return &food, nil
}

// ExistsByBarcode reports whether a food was already imported with this barcode
func (r *FoodRepository) ExistsByBarcode(ctx context.Context, barcode string) (bool, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return false, nil
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&model.FoodItem{}).Where("openfoodfacts_id = ?", barcode).Count(&n).Error
	if err != nil {
		return false, fail(r.log, "food exists by barcode", err, zap.String("barcode", barcode))
	}
	return n > 0, nil
}

// Save creates the food when its ID is zero and updates it otherwise
func (r *FoodRepository) Save(ctx context.Context, food *model.FoodItem) error {
	if err := food.Validate(); err != nil {
		return fail(r.log, "save food", invalid("%v", err))
	}
	food.Name = strings.TrimSpace(food.Name)
	if food.Barcode != nil && strings.TrimSpace(*food.Barcode) == "" {
		food.Barcode = nil
	}

	err := database.WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if food.Barcode != nil {
			var taken int64
			err := tx.Model(&model.FoodItem{}).
				Where("openfoodfacts_id = ? AND id <> ?", *food.Barcode, food.ID).
				Count(&taken).Error
			if err != nil {
				return err
			}
			if taken > 0 {
				return invalid("barcode %s already used by another food", *food.Barcode)
			}
		}
		if food.ID == 0 {
			return tx.Create(food).Error
		}
		var n int64
		if err := tx.Model(&model.FoodItem{}).Where("id = ?", food.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return notFound("food %d", food.ID)
		}
		return tx.Save(food).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = invalid("barcode already used by another food")
	}
	if err != nil {
		return fail(r.log, "save food", err, zap.Int64("food_id", food.ID))
	}
	return nil
}

// ImportFromExternal stores an external product record as a food.
// Records without a product name are rejected. A barcode that is already known
// is a success returning the stored food, so importing twice never duplicates it.
// created reports whether a new row was inserted.
func (r *FoodRepository) ImportFromExternal(ctx context.Context, rec model.ExternalFood) (food *model.FoodItem, created bool, err error) {
	name := strings.TrimSpace(rec.ProductName)
	code := strings.TrimSpace(rec.Code)
	if name == "" {
		return nil, false, fail(r.log, "import food", invalid("product name is required"), zap.String("barcode", code))
	}

	food = foodFromExternal(name, code, rec)
	err = database.WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if code != "" {
			var existing model.FoodItem
			err := tx.Where("openfoodfacts_id = ?", code).Take(&existing).Error
			if err == nil {
				*food = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(food)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent import stored the same barcode first
			return tx.Where("openfoodfacts_id = ?", code).Take(food).Error
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fail(r.log, "import food", err, zap.String("barcode", code))
	}

	if created {
		r.log.Info("imported food", zap.Int64("food_id", food.ID), zap.String("barcode", code))
	}
	return food, created, nil
}

// Delete removes a food that no meal references
func (r *FoodRepository) Delete(ctx context.Context, id int64) error {
	err := database.WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.FoodItem{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return notFound("food %d", id)
		}

		var refs int64
		if err := tx.Model(&model.MealFoodLink{}).Where("aliment_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrInUse
		}
		return tx.Delete(&model.FoodItem{}, id).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		err = ErrInUse
	}
	if err != nil {
		return fail(r.log, "delete food", err, zap.Int64("food_id", id))
	}
	return nil
}

func foodFromExternal(name, code string, rec model.ExternalFood) *model.FoodItem {
	n := rec.Nutriments
	food := &model.FoodItem{
		Name:          name,
		Calories:      nonNegative(n.EnergyKcal),
		Proteins:      nonNegative(n.Proteins),
		Carbohydrates: nonNegative(n.Carbohydrates),
		Sugars:        nonNegative(n.Sugars),
		Fat:           nonNegative(n.Fat),
		SaturatedFat:  nonNegative(n.SaturatedFat),
		Fiber:         nonNegative(n.Fiber),
		Sodium:        nonNegative(n.Sodium),
		Extra:         model.Attributes{"source": SourceOpenFoodFacts},
	}
	if code != "" {
		food.Barcode = &code
		food.Extra["barcode"] = code
	}
	if brand := strings.TrimSpace(rec.Brands); brand != "" {
		food.Extra["brand"] = brand
	}
	if img := strings.TrimSpace(rec.ImageURL); img != "" {
		food.Extra["image_url"] = img
	}
	return food
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
