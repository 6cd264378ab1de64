package controllers

import (
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
	"github.com/vnkhanh/siquiz-backend/services"
	"github.com/vnkhanh/siquiz-backend/utils"
)

// ListQuizzes: GET /api/quiz?page&limit&category&difficulty&tag&search&sort&mine&status
func ListQuizzes(c *gin.Context) {
	page, limit := pagination(c)
	filter := services.QuizFilter{
		Page:       page,
		Limit:      limit,
		Category:   c.Query("category"),
		Difficulty: models.Difficulty(c.Query("difficulty")),
		Tag:        c.Query("tag"),
		Search:     c.Query("search"),
		Sort:       c.DefaultQuery("sort", "newest"),
		Mine:       c.Query("mine") == "true",
		Status:     models.QuizStatus(c.Query("status")),
	}
	if filter.Difficulty != "" && !filter.Difficulty.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty không hợp lệ"})
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status không hợp lệ"})
		return
	}

	items, total, err := svc(c).Quizzes.ListQuizzes(c.Request.Context(), currentActor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(items, total, page, limit))
}

// GetQuiz: người quản lý nhận đầy đủ đáp án, người khác nhận bản đã ẩn đáp án
func GetQuiz(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	quiz, canManage, err := svc(c).Quizzes.GetQuiz(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if canManage {
		c.JSON(http.StatusOK, gin.H{"quiz": quiz, "can_manage": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz": services.ProjectForTaking(quiz), "can_manage": false})
}

func CreateQuiz(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var input services.QuizInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	quiz, err := svc(c).Quizzes.CreateQuiz(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Tạo quiz thành công", "quiz": quiz})
}

func UpdateQuiz(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var patch services.QuizPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	quiz, err := svc(c).Quizzes.UpdateQuiz(c.Request.Context(), actor, id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật quiz thành công", "quiz": quiz})
}

func DeleteQuiz(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := svc(c).Quizzes.DeleteQuiz(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Xóa quiz thành công"})
}

func UpdateQuizStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Status models.QuizStatus `json:"status" binding:"required,oneof=DRAFT PUBLISHED ARCHIVED"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	quiz, err := svc(c).Quizzes.SetStatus(c.Request.Context(), actor, id, input.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã cập nhật trạng thái", "status": quiz.Status})
}

// UploadQuizCover: multipart field "cover"
func UploadQuizCover(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	storage := svc(c).Storage
	if storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chưa cấu hình lưu trữ file"})
		return
	}

	file, err := c.FormFile("cover")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file ảnh bìa"})
		return
	}
	if err := utils.ValidateImage(file); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	// Kiểm tra quyền trước khi upload để không để lại file rác
	if _, canManage, err := svc(c).Quizzes.GetQuiz(ctx, actor, id); err != nil || !canManage {
		if err == nil {
			err = services.ErrForbidden
		}
		respondError(c, err)
		return
	}

	publicURL, err := storage.Upload(ctx, "quiz-covers", file)
	if err != nil {
		respondError(c, err)
		return
	}
	old, err := svc(c).Quizzes.SetCover(ctx, actor, id, publicURL)
	if err != nil {
		_ = storage.Delete(ctx, publicURL)
		respondError(c, err)
		return
	}
	if old != "" {
		if err := storage.Delete(ctx, old); err != nil {
			log.Printf("[Storage] không xóa được ảnh bìa cũ %s: %v", old, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật ảnh bìa thành công", "cover_url": publicURL})
}

func AddQuestions(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input struct {
		Questions []services.QuestionInput `json:"questions" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	created, err := svc(c).Quizzes.AddQuestions(c.Request.Context(), actor, id, input.Questions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Thêm câu hỏi thành công", "questions": created})
}

func UpdateQuestion(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "questionId")
	if !ok {
		return
	}
	var input services.QuestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	q, err := svc(c).Quizzes.UpdateQuestion(c.Request.Context(), actor, id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật câu hỏi thành công", "question": q})
}

func DeleteQuestion(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "questionId")
	if !ok {
		return
	}
	if err := svc(c).Quizzes.DeleteQuestion(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Xóa câu hỏi thành công"})
}

func GetQuizStats(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	stats, err := svc(c).Quizzes.Stats(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportQuizAttempts trả file xlsx các lượt đã hoàn thành
func ExportQuizAttempts(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	f, filename, err := svc(c).Quizzes.ExportAttempts(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[Export] ghi file %s lỗi: %v", filename, err)
	}
}

func quizIDQuery(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("quiz_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quiz_id không hợp lệ"})
		return nil, false
	}
	return &id, true
}
