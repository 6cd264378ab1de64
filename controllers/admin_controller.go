package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
	"gorm.io/gorm"
)

type DailyPoint struct {
	Date  string `json:"date"` // "2025-01-31"
	Count int64  `json:"count"`
}

type TopQuizItem struct {
	QuizID       uuid.UUID `json:"quiz_id"`
	Title        string    `json:"title"`
	AttemptCount int64     `json:"attempt_count"`
	AverageScore float64   `json:"average_score"`
}

type DashboardOverview struct {
	TotalUsers        int64                       `json:"total_users"`
	NewUsers30d       int64                       `json:"new_users_30d"`
	QuizzesByStatus   map[models.QuizStatus]int64 `json:"quizzes_by_status"`
	TotalAttempts     int64                       `json:"total_attempts"`
	CompletedAttempts int64                       `json:"completed_attempts"`
	AverageScore      float64                     `json:"average_score"`
	AttemptsLast7Days []DailyPoint                `json:"attempts_last_7_days"`
	TopQuizzes        []TopQuizItem               `json:"top_quizzes"`
}

// ===================== Tổng quan Dashboard =====================
func GetDashboardOverview(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	now := time.Now()

	var overview DashboardOverview
	db.Model(&models.User{}).Count(&overview.TotalUsers)
	db.Model(&models.User{}).Where("created_at >= ?", now.AddDate(0, 0, -30)).Count(&overview.NewUsers30d)

	var byStatus []struct {
		Status models.QuizStatus
		Count  int64
	}
	if err := db.Model(&models.Quiz{}).Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		respondError(c, err)
		return
	}
	overview.QuizzesByStatus = map[models.QuizStatus]int64{
		models.QuizDraft:     0,
		models.QuizPublished: 0,
		models.QuizArchived:  0,
	}
	for _, row := range byStatus {
		overview.QuizzesByStatus[row.Status] = row.Count
	}

	db.Model(&models.QuizAttempt{}).Count(&overview.TotalAttempts)
	db.Model(&models.QuizAttempt{}).Where("status = ?", models.AttemptCompleted).Count(&overview.CompletedAttempts)
	db.Model(&models.QuizAttempt{}).
		Select("COALESCE(AVG(score), 0)").
		Where("status = ?", models.AttemptCompleted).
		Scan(&overview.AverageScore)
	overview.AverageScore = float64(int(overview.AverageScore*100+0.5)) / 100

	// Gom theo ngày ở phía ứng dụng để không phụ thuộc hàm ngày của từng DB
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -6)
	var startedAt []time.Time
	if err := db.Model(&models.QuizAttempt{}).Where("started_at >= ?", start).Pluck("started_at", &startedAt).Error; err != nil {
		respondError(c, err)
		return
	}
	counts := make(map[string]int64, 7)
	for _, t := range startedAt {
		counts[t.In(now.Location()).Format(time.DateOnly)]++
	}
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i).Format(time.DateOnly)
		overview.AttemptsLast7Days = append(overview.AttemptsLast7Days, DailyPoint{Date: day, Count: counts[day]})
	}

	err := db.Table("quiz_attempts").
		Select("quizzes.id AS quiz_id, quizzes.title, COUNT(quiz_attempts.id) AS attempt_count, COALESCE(AVG(CASE WHEN quiz_attempts.status = ? THEN quiz_attempts.score END), 0) AS average_score", models.AttemptCompleted).
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Group("quizzes.id, quizzes.title").
		Order("attempt_count DESC").
		Limit(5).
		Scan(&overview.TopQuizzes).Error
	if err != nil {
		respondError(c, err)
		return
	}
	if overview.TopQuizzes == nil {
		overview.TopQuizzes = []TopQuizItem{}
	}

	c.JSON(http.StatusOK, overview)
}

// ListUsers: GET /api/admin/users?search=&role=&status=&page=&limit=
func ListUsers(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	query := db.Model(&models.User{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if role := models.UserRole(c.Query("role")); role != "" {
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role không hợp lệ"})
			return
		}
		query = query.Where("role = ?", role)
	}
	switch c.Query("status") {
	case "true":
		query = query.Where("status IS NULL OR status = ?", true)
	case "false":
		query = query.Where("status = ?", false)
	}

	page, limit := pagination(c)
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}
	var users []models.User
	if err := query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(users, total, page, limit))
}

// UpdateUserStatus khóa / mở khóa tài khoản. Admin không tự khóa chính mình.
func UpdateUserStatus(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Status *bool `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	if id.String() == c.GetString("user_id") && !*input.Status {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Không thể tự khóa tài khoản của mình"})
		return
	}

	res := db.Model(&models.User{}).Where("id = ?", id).Update("status", *input.Status)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Người dùng không tồn tại"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã cập nhật trạng thái tài khoản", "status": *input.Status})
}

func UpdateUserRole(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Role models.UserRole `json:"role" binding:"required,oneof=admin creator user"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	if id.String() == c.GetString("user_id") && input.Role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Không thể tự hạ quyền của mình"})
		return
	}

	res := db.Model(&models.User{}).Where("id = ?", id).Update("role", input.Role)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Người dùng không tồn tại"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã cập nhật vai trò", "role": input.Role})
}
