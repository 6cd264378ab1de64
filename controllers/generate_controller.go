package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/siquiz-backend/services"
)

// GenerateFromTopic: POST /api/quiz/:id/generate
func GenerateFromTopic(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	questions, err := svc(c).Generator.FromTopic(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Sinh câu hỏi thành công",
		"requested": req.Count,
		"created":   len(questions),
		"questions": questions,
	})
}

// GenerateFromDocument: multipart "file" (.pdf/.docx/.txt) + count, question_type, difficulty, language
func GenerateFromDocument(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req services.GenerateRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file tài liệu"})
		return
	}

	text, err := services.ExtractText(file)
	if err != nil {
		respondError(c, err)
		return
	}

	questions, err := svc(c).Generator.FromDocument(c.Request.Context(), actor, id, text, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Sinh câu hỏi từ tài liệu thành công",
		"file_name": file.Filename,
		"requested": req.Count,
		"created":   len(questions),
		"questions": questions,
	})
}
