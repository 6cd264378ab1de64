package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vnkhanh/siquiz-backend/models"
	"github.com/vnkhanh/siquiz-backend/utils"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS đã giới hạn phía HTTP, token bắt buộc qua query
	},
}

func tokenClaims(c *gin.Context) (*utils.Claims, bool) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Thiếu token"})
		return nil, false
	}
	claims, err := utils.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token không hợp lệ hoặc hết hạn"})
		return nil, false
	}
	return claims, true
}

// HandleAttemptWebSocket đẩy deadline khi kết nối và thông báo khi lượt làm được chốt
func HandleAttemptWebSocket(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	claims, ok := tokenClaims(c)
	if !ok {
		return
	}

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attemptId không hợp lệ"})
		return
	}
	var attempt models.QuizAttempt
	if err := db.First(&attempt, "id = ? AND user_id = ?", attemptID, claims.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy lượt làm bài"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[WS] upgrade thất bại:", err)
		return
	}
	room := AttemptRoom(attemptID)
	client := H.Join(room, conn)
	defer H.Leave(room, client)

	if attempt.Status == models.AttemptInProgress {
		client.Send(gin.H{
			"type":        "deadline",
			"attempt_id":  attempt.ID,
			"started_at":  attempt.StartedAt,
			"deadline_at": attempt.DeadlineAt,
			"server_time": time.Now().UTC(),
		})
	} else {
		client.Send(gin.H{"type": "completed", "attempt_id": attempt.ID, "score": attempt.Score, "status": attempt.Status})
	}

	client.readPump()
}

// HandleAdminWebSocket: feed realtime cho dashboard admin
func HandleAdminWebSocket(c *gin.Context) {
	claims, ok := tokenClaims(c)
	if !ok {
		return
	}
	if claims.Role != string(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Chỉ admin được kết nối"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[WS] upgrade thất bại:", err)
		return
	}
	client := H.Join(AdminRoom, conn)
	defer H.Leave(AdminRoom, client)

	client.Send(gin.H{"type": "connected", "message": "Connected to admin feed"})
	log.Printf("[WS] admin %s connected", claims.UserID)
	client.readPump()
}
