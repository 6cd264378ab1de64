package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/services"
)

// TakeQuiz: GET /api/quiz/:id/take, không bao giờ chứa đáp án đúng hay giải thích
func TakeQuiz(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	dto, err := svc(c).Attempts.TakeQuiz(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// StartAttempt trả lượt đang làm nếu đã có, 201 khi tạo mới
func StartAttempt(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	attempt, created, err := svc(c).Attempts.StartAttempt(c.Request.Context(), actor.ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"attempt_id":  attempt.ID,
		"started_at":  attempt.StartedAt,
		"deadline_at": attempt.DeadlineAt,
		"resumed":     !created,
	})
}

type saveAnswersInput struct {
	Answers map[string]services.AnswerValue `json:"answers" binding:"required"`
}

// SaveAnswers: PUT /api/attempt/:attemptId/answers, lưu nháp từng câu (autosave)
func SaveAnswers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	attemptID, ok := paramUUID(c, "attemptId")
	if !ok {
		return
	}
	var input saveAnswersInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	verr := &services.ValidationError{}
	parsed := make(map[uuid.UUID]services.AnswerValue, len(input.Answers))
	for key, value := range input.Answers {
		qid, err := uuid.Parse(key)
		if err != nil {
			verr.Add("answers."+key, "question id không hợp lệ")
			continue
		}
		parsed[qid] = value
	}
	if err := verr.OrNil(); err != nil {
		respondError(c, err)
		return
	}

	if err := svc(c).Attempts.SaveAnswers(c.Request.Context(), actor.ID, attemptID, parsed); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã lưu câu trả lời", "saved": len(parsed)})
}

type submitInput struct {
	Answers map[string]services.AnswerValue `json:"answers"`
}

func SubmitAttempt(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	attemptID, ok := paramUUID(c, "attemptId")
	if !ok {
		return
	}
	var input submitInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
	}
	result, err := svc(c).Attempts.SubmitAttempt(c.Request.Context(), actor.ID, attemptID, input.Answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAttempt trả kết quả khi đã nộp, ngược lại trả tiến độ để làm tiếp
func GetAttempt(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	attemptID, ok := paramUUID(c, "attemptId")
	if !ok {
		return
	}
	view, err := svc(c).Attempts.GetAttempt(c.Request.Context(), actor.ID, attemptID)
	if err != nil {
		respondError(c, err)
		return
	}
	if view.Result != nil {
		c.JSON(http.StatusOK, gin.H{"type": "result", "result": view.Result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "progress", "progress": view.Progress})
}

func AbandonAttempt(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	attemptID, ok := paramUUID(c, "attemptId")
	if !ok {
		return
	}
	if err := svc(c).Attempts.AbandonAttempt(c.Request.Context(), actor.ID, attemptID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã hủy lượt làm bài"})
}

// ListMyAttempts: GET /api/attempts?quiz_id=&page=&limit=
func ListMyAttempts(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	quizID, ok := quizIDQuery(c)
	if !ok {
		return
	}
	listAttempts(c, actor.ID, quizID)
}

// ListQuizAttempts: GET /api/quiz/:id/attempts, lịch sử của chính user với quiz này
func ListQuizAttempts(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	listAttempts(c, actor.ID, &id)
}

func listAttempts(c *gin.Context, userID uuid.UUID, quizID *uuid.UUID) {
	page, limit := pagination(c)
	items, total, err := svc(c).Attempts.ListUserAttempts(c.Request.Context(), userID, quizID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(items, total, page, limit))
}
