package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/siquiz-backend/models"
	"gorm.io/gorm"
)

func GetTags(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	var tags []models.Tag
	name := c.Query("name") // lấy ?name=... từ URL

	query := db.Model(&models.Tag{})
	if name != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+name+"%")
	}

	if err := query.Order("name ASC").Find(&tags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể lấy danh sách thẻ"})
		return
	}

	c.JSON(http.StatusOK, tags)
}

type tagInput struct {
	Name string `json:"name" binding:"required,max=50"`
}

func CreateTag(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input tagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	name := strings.TrimSpace(input.Name)
	slugValue := GenerateSlug(name)
	if slugValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tên thẻ không hợp lệ"})
		return
	}

	var count int64
	db.Model(&models.Tag{}).Where("LOWER(name) = ? OR slug = ?", strings.ToLower(name), slugValue).Count(&count)
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thẻ đã tồn tại"})
		return
	}

	tag := models.Tag{Name: name, Slug: slugValue}
	if err := db.Create(&tag).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Tạo thẻ thành công", "tag": tag})
}

func UpdateTag(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var input tagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	var tag models.Tag
	if err := db.First(&tag, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy thẻ"})
			return
		}
		respondError(c, err)
		return
	}

	name := strings.TrimSpace(input.Name)
	slugValue := GenerateSlug(name)
	var count int64
	db.Model(&models.Tag{}).
		Where("(LOWER(name) = ? OR slug = ?) AND id <> ?", strings.ToLower(name), slugValue, id).
		Count(&count)
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thẻ đã tồn tại"})
		return
	}

	tag.Name = name
	tag.Slug = slugValue
	if err := db.Save(&tag).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật thẻ thành công", "tag": tag})
}

// DeleteTag gỡ thẻ khỏi mọi quiz rồi xóa
func DeleteTag(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var tag models.Tag
	if err := db.First(&tag, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy thẻ"})
		return
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM quiz_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Xóa thẻ thành công"})
}
