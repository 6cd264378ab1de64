package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/vnkhanh/siquiz-backend/models"
	"github.com/vnkhanh/siquiz-backend/services"
	"gorm.io/gorm"
)

func GenerateSlug(name string) string {
	return slug.Make(name)
}

type CategoryWithCount struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	QuizCount   int64     `json:"quiz_count"`
}

func invalidateCategories(c *gin.Context) {
	svc(c).Cache.Delete(c.Request.Context(), services.CategoriesActiveKey)
}

// categoryTaken: tên (không phân biệt hoa thường) hoặc slug đã thuộc danh mục khác
func categoryTaken(db *gorm.DB, name, slugValue string, except *uuid.UUID) (bool, error) {
	q := db.Model(&models.Category{}).
		Where("(LOWER(TRIM(name)) = ? OR slug = ?)", strings.ToLower(name), slugValue)
	if except != nil {
		q = q.Where("id <> ?", *except)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

// categoryByParam đọc :id, trả false khi đã ghi response lỗi
func categoryByParam(c *gin.Context, db *gorm.DB) (*models.Category, bool) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return nil, false
	}
	var category models.Category
	if err := db.First(&category, "id = ?", id).Error; err != nil {
		respondError(c, err)
		return nil, false
	}
	return &category, true
}

func CreateCategory(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input struct {
		Name        string `json:"name" binding:"required,max=100"`
		Description string `json:"description"`
		Status      *bool  `json:"status"` // optional
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	name := strings.TrimSpace(input.Name)
	slugValue := GenerateSlug(name)
	if name == "" || slugValue == "" {
		respondError(c, services.NewValidationError("name", "bắt buộc"))
		return
	}
	taken, err := categoryTaken(db, name, slugValue, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	if taken {
		respondError(c, services.NewValidationError("name", "danh mục đã tồn tại"))
		return
	}

	category := models.Category{
		Name:        name,
		Slug:        slugValue,
		Description: input.Description,
		Status:      true,
	}
	if actor := currentActor(c); actor != nil {
		category.CreatedBy = &actor.ID
	}
	if input.Status != nil {
		category.Status = *input.Status
	}

	if err := db.Create(&category).Error; err != nil {
		respondError(c, err)
		return
	}
	invalidateCategories(c)

	c.JSON(http.StatusCreated, gin.H{"message": "Đã tạo danh mục", "category": category})
}

// GetCategoriesAdmin: danh sách đầy đủ cho admin, có tìm kiếm + lọc trạng thái + phân trang
func GetCategoriesAdmin(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	query := db.Model(&models.Category{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	switch c.Query("status") {
	case "true":
		query = query.Where("status = ?", true)
	case "false":
		query = query.Where("status = ?", false)
	}

	page, limit := pagination(c)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var categories []models.Category
	if err := query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&categories).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, paged(categories, total, page, limit))
}

// GetActiveCategories: danh mục đang hoạt động kèm số quiz đã xuất bản (cache redis)
func GetActiveCategories(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	cache := svc(c).Cache
	ctx := c.Request.Context()

	var results []CategoryWithCount
	if cache.GetJSON(ctx, services.CategoriesActiveKey, &results) {
		c.JSON(http.StatusOK, results)
		return
	}

	err := db.Table("categories").
		Select(`categories.id, categories.name, categories.slug, categories.description,
			COUNT(quizzes.id) AS quiz_count`).
		Joins("LEFT JOIN quizzes ON quizzes.category_id = categories.id AND quizzes.status = ?", models.QuizPublished).
		Where("categories.status = ?", true).
		Group("categories.id, categories.name, categories.slug, categories.description").
		Order("categories.name ASC").
		Scan(&results).Error
	if err != nil {
		respondError(c, err)
		return
	}
	if results == nil {
		results = []CategoryWithCount{}
	}

	cache.SetJSON(ctx, services.CategoriesActiveKey, results)
	c.JSON(http.StatusOK, results)
}

func GetCategoryDetail(c *gin.Context) {
	if category, ok := categoryByParam(c, c.MustGet("db").(*gorm.DB)); ok {
		c.JSON(http.StatusOK, category)
	}
}

func UpdateCategory(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	category, ok := categoryByParam(c, db)
	if !ok {
		return
	}

	var input struct {
		Name        string  `json:"name" binding:"required,max=100"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	name := strings.TrimSpace(input.Name)
	slugValue := GenerateSlug(name)
	if name == "" || slugValue == "" {
		respondError(c, services.NewValidationError("name", "không được để trống"))
		return
	}
	taken, err := categoryTaken(db, name, slugValue, &category.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if taken {
		respondError(c, services.NewValidationError("name", "trùng với danh mục khác"))
		return
	}

	category.Name = name
	category.Slug = slugValue
	if input.Description != nil {
		category.Description = *input.Description
	}
	if actor := currentActor(c); actor != nil {
		category.UpdatedBy = &actor.ID
	}

	if err := db.Save(category).Error; err != nil {
		respondError(c, err)
		return
	}
	invalidateCategories(c)
	c.JSON(http.StatusOK, gin.H{"message": "Đã cập nhật danh mục", "category": category})
}

// DeleteCategory: quiz thuộc danh mục sẽ được gỡ danh mục (category_id = NULL)
func DeleteCategory(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Quiz{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return services.ErrNotFound
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	invalidateCategories(c)

	c.JSON(http.StatusOK, gin.H{"message": "Đã xóa danh mục"})
}

// ToggleCategoryStatus bật/tắt danh mục; danh mục tắt không hiện ở danh sách công khai
func ToggleCategoryStatus(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	category, ok := categoryByParam(c, db)
	if !ok {
		return
	}
	status := !category.Status
	if err := db.Model(category).Update("status", status).Error; err != nil {
		respondError(c, err)
		return
	}
	invalidateCategories(c)
	c.JSON(http.StatusOK, gin.H{"message": "Đã đổi trạng thái danh mục", "status": status})
}
