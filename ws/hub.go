package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vnkhanh/siquiz-backend/models"
)

const (
	AdminRoom = "admin"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func AttemptRoom(attemptID uuid.UUID) string { return "attempt:" + attemptID.String() }

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub quản lý client theo room (mỗi lượt làm một room, cộng room admin)
type Hub struct {
	rooms map[string]map[*Client]bool
	mu    sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

var H = NewHub()

// Join đăng ký conn vào room và chạy write pump. Caller chịu trách nhiệm read pump.
func (h *Hub) Join(room string, conn *websocket.Conn) *Client {
	client := &Client{conn: conn, send: make(chan []byte, 32)}

	h.mu.Lock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	h.mu.Unlock()

	go client.writePump()
	return client
}

func (h *Hub) Leave(room string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[room]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		close(client.send)
		delete(clients, client)
	}
	if len(clients) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast không chặn: client có buffer đầy sẽ bị bỏ qua message
func (h *Hub) Broadcast(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) BroadcastJSON(room string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Println("[WS] JSON marshal error:", err)
		return
	}
	h.Broadcast(room, data)
}

func (h *Hub) GetStats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := 0
	for _, r := range h.rooms {
		clients += len(r)
	}
	return map[string]int{"rooms": len(h.rooms), "clients": clients}
}

// AttemptFinalized báo cho người làm bài và dashboard admin khi lượt làm được chốt
func (h *Hub) AttemptFinalized(attempt *models.QuizAttempt, quizTitle string) {
	msgType := "completed"
	if attempt.TimedOut {
		msgType = "expired"
	}
	h.BroadcastJSON(AttemptRoom(attempt.ID), map[string]interface{}{
		"type":         msgType,
		"attempt_id":   attempt.ID,
		"score":        attempt.Score,
		"completed_at": attempt.CompletedAt,
	})
	h.BroadcastJSON(AdminRoom, map[string]interface{}{
		"type":       "attempt_completed",
		"attempt_id": attempt.ID,
		"quiz_id":    attempt.QuizID,
		"quiz_title": quizTitle,
		"user_id":    attempt.UserID,
		"score":      attempt.Score,
		"timed_out":  attempt.TimedOut,
	})
}

func (c *Client) Send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump chặn tới khi client ngắt kết nối. Client không gửi gì lên ngoài pong.
func (c *Client) readPump() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
