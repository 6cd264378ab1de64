package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
	"github.com/vnkhanh/siquiz-backend/services"
	"gorm.io/gorm"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// respondError ánh xạ lỗi service sang HTTP status. Lỗi không xác định chỉ được log.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dữ liệu không hợp lệ", "fields": verr.Fields})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Bạn cần đăng nhập"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền thực hiện thao tác này"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy dữ liệu"})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "Trạng thái không hợp lệ", "detail": err.Error()})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dữ liệu đã tồn tại"})
	case errors.Is(err, services.ErrUpstream):
		log.Printf("[%s %s] upstream: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Dịch vụ bên ngoài không phản hồi, vui lòng thử lại"})
	default:
		log.Printf("[%s %s] lỗi: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi hệ thống"})
	}
}

// bindError trả lỗi binding theo từng field (json tag) nếu là lỗi validator
func bindError(c *gin.Context, err error) {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		fields := make(map[string]string, len(ves))
		for _, fe := range ves {
			fields[fieldPath(fe)] = validationMessage(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dữ liệu không hợp lệ", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Dữ liệu gửi lên không hợp lệ", "detail": err.Error()})
}

// fieldPath: "QuizInput.Questions[0].QuestionText" -> "questions[0].question_text"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '[' {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "bắt buộc"
	case "email":
		return "email không hợp lệ"
	case "min":
		return fmt.Sprintf("tối thiểu %s", fe.Param())
	case "max":
		return fmt.Sprintf("tối đa %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("phải là một trong: %s", fe.Param())
	}
	return "không hợp lệ"
}

func svc(c *gin.Context) *services.Container {
	return c.MustGet("svc").(*services.Container)
}

// currentActor trả nil khi request chưa đăng nhập
func currentActor(c *gin.Context) *services.Actor {
	id, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		return nil
	}
	return &services.Actor{ID: id, Role: models.UserRole(c.GetString("role"))}
}

func requireActor(c *gin.Context) (*services.Actor, bool) {
	actor := currentActor(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user_id không hợp lệ"})
		return nil, false
	}
	return actor, true
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " không hợp lệ"})
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, limit int) {
	page, limit = 1, defaultLimit
	if p := c.Query("page"); p != "" {
		fmt.Sscanf(p, "%d", &page)
		if page < 1 {
			page = 1
		}
	}
	if l := c.Query("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
		if limit < 1 {
			limit = defaultLimit
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	return page, limit
}

func paged(data interface{}, total int64, page, limit int) gin.H {
	return gin.H{
		"data":       data,
		"total":      total,
		"page":       page,
		"limit":      limit,
		"totalPages": (total + int64(limit) - 1) / int64(limit),
	}
}
