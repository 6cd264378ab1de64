package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptCompleted  AttemptStatus = "COMPLETED"
	AttemptAbandoned  AttemptStatus = "ABANDONED"
)

// QuizAttempt: một lượt làm quiz của một user.
// Mỗi (user, quiz) chỉ có tối đa một lượt IN_PROGRESS (partial unique index).
type QuizAttempt struct {
	ID     uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_attempts_one_active,where:status = 'IN_PROGRESS'" json:"user_id"`
	User   User          `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	QuizID uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_attempts_one_active,where:status = 'IN_PROGRESS'" json:"quiz_id"`
	Quiz   Quiz          `gorm:"foreignKey:QuizID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	Status AttemptStatus `gorm:"type:varchar(12);not null;index" json:"status"`

	Score        float64 `gorm:"type:numeric(5,2);default:0" json:"score"` // phần trăm 0..100
	EarnedPoints int     `gorm:"default:0" json:"earned_points"`
	TotalPoints  int     `gorm:"default:0" json:"total_points"`
	CorrectCount int     `gorm:"default:0" json:"correct_count"`
	TimedOut     bool    `gorm:"default:false" json:"timed_out"`

	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	DeadlineAt  *time.Time `gorm:"index" json:"deadline_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Thứ tự câu hỏi cố định cho lượt làm (khi quiz bật shuffle)
	QuestionOrder datatypes.JSON `gorm:"type:jsonb" json:"-"`

	Answers []Answer `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE;" json:"answers,omitempty"`
}

func (a *QuizAttempt) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Order đọc thứ tự câu hỏi đã lưu, nil nếu không có
func (a *QuizAttempt) Order() []uuid.UUID {
	if len(a.QuestionOrder) == 0 {
		return nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(a.QuestionOrder, &ids); err != nil {
		return nil
	}
	return ids
}

func (a *QuizAttempt) SetOrder(ids []uuid.UUID) error {
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	a.QuestionOrder = datatypes.JSON(b)
	return nil
}

// Expired: đã quá hạn nộp (tính cả thời gian ân hạn)
func (a *QuizAttempt) Expired(now time.Time, grace time.Duration) bool {
	return a.DeadlineAt != nil && now.After(a.DeadlineAt.Add(grace))
}

// Answer: câu trả lời cho một câu hỏi trong một lượt làm.
// IsCorrect/PointsEarned chỉ có nghĩa sau khi chấm.
type Answer struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AttemptID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_answers_attempt_question" json:"attempt_id"`
	QuestionID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_answers_attempt_question" json:"question_id"`
	Question         Question   `gorm:"foreignKey:QuestionID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	SelectedOptionID *uuid.UUID `gorm:"type:uuid" json:"selected_option_id"`
	ShortAnswerText  *string    `gorm:"type:text" json:"short_answer_text"`
	IsCorrect        bool       `gorm:"default:false" json:"is_correct"`
	PointsEarned     int        `gorm:"default:0" json:"points_earned"`
	AnsweredAt       time.Time  `gorm:"autoUpdateTime" json:"answered_at"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// AIGenerationLog lưu vết mỗi lần sinh câu hỏi bằng AI
type AIGenerationLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"quiz_id"`
	Quiz        Quiz           `gorm:"foreignKey:QuizID;references:ID;constraint:OnDelete:CASCADE;" json:"-"`
	RequestedBy uuid.UUID      `gorm:"type:uuid;not null" json:"requested_by"`
	Source      string         `gorm:"size:20;not null" json:"source"` // topic | document
	PromptHash  string         `gorm:"size:64" json:"prompt_hash"`
	Requested   int            `json:"requested"`
	Accepted    int            `json:"accepted"`
	Response    datatypes.JSON `gorm:"type:jsonb" json:"response,omitempty"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (l *AIGenerationLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
