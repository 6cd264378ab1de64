package controllers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/siquiz-backend/models"
	"github.com/vnkhanh/siquiz-backend/utils"
	"gorm.io/gorm"
)

type ProfileStats struct {
	AttemptsTaken  int64   `json:"attempts_taken"`
	Completed      int64   `json:"completed"`
	AverageScore   float64 `json:"average_score"`
	BestScore      float64 `json:"best_score"`
	QuizzesCreated int64   `json:"quizzes_created"`
}

func GetProfile(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	var user models.User
	if err := db.First(&user, "id = ?", c.GetString("user_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Người dùng không tồn tại"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func UpdateProfile(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	var input struct {
		FullName *string `json:"full_name" binding:"omitempty,max=150"`
		Bio      *string `json:"bio" binding:"omitempty,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Họ tên không được để trống"})
			return
		}
		updates["full_name"] = name
	}
	if input.Bio != nil {
		updates["bio"] = strings.TrimSpace(*input.Bio)
	}

	var user models.User
	if err := db.First(&user, "id = ?", c.GetString("user_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Người dùng không tồn tại"})
		return
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
		db.First(&user, "id = ?", user.ID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật hồ sơ thành công", "user": user})
}

// UploadAvatar: multipart field "avatar", ảnh cũ được xóa khỏi storage sau khi cập nhật
func UploadAvatar(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	storage := svc(c).Storage
	if storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chưa cấu hình lưu trữ file"})
		return
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file ảnh đại diện"})
		return
	}
	if err := utils.ValidateImage(file); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := db.First(&user, "id = ?", c.GetString("user_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Người dùng không tồn tại"})
		return
	}

	ctx := c.Request.Context()
	publicURL, err := storage.Upload(ctx, "avatars", file)
	if err != nil {
		respondError(c, err)
		return
	}
	old := user.AvatarURL
	if err := db.Model(&user).Update("avatar_url", publicURL).Error; err != nil {
		_ = storage.Delete(ctx, publicURL)
		respondError(c, err)
		return
	}
	if old != "" {
		if err := storage.Delete(ctx, old); err != nil {
			log.Printf("[Storage] không xóa được avatar cũ %s: %v", old, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật ảnh đại diện thành công", "avatar_url": publicURL})
}

func GetProfileStats(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	userID := c.GetString("user_id")

	var stats ProfileStats
	db.Model(&models.QuizAttempt{}).Where("user_id = ?", userID).Count(&stats.AttemptsTaken)

	var agg struct {
		Completed int64
		Average   float64
		Best      float64
	}
	err := db.Model(&models.QuizAttempt{}).
		Select("COUNT(*) AS completed, COALESCE(AVG(score), 0) AS average, COALESCE(MAX(score), 0) AS best").
		Where("user_id = ? AND status = ?", userID, models.AttemptCompleted).
		Scan(&agg).Error
	if err != nil {
		respondError(c, err)
		return
	}
	stats.Completed = agg.Completed
	stats.AverageScore = float64(int(agg.Average*100+0.5)) / 100
	stats.BestScore = agg.Best

	db.Model(&models.Quiz{}).Where("created_by = ?", userID).Count(&stats.QuizzesCreated)

	c.JSON(http.StatusOK, stats)
}
