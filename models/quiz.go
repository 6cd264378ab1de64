package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

type QuizStatus string

const (
	QuizDraft     QuizStatus = "DRAFT"
	QuizPublished QuizStatus = "PUBLISHED"
	QuizArchived  QuizStatus = "ARCHIVED"
)

func (s QuizStatus) Valid() bool {
	return s == QuizDraft || s == QuizPublished || s == QuizArchived
}

type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TrueFalse      QuestionType = "TRUE_FALSE"
	ShortAnswer    QuestionType = "SHORT_ANSWER"
)

func (t QuestionType) Valid() bool {
	return t == MultipleChoice || t == TrueFalse || t == ShortAnswer
}

// Quiz là gốc của cây sở hữu: xóa quiz sẽ xóa questions, options, attempts, answers.
type Quiz struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Slug             string     `gorm:"size:280;index" json:"slug"`
	Description      string     `gorm:"type:text" json:"description"`
	Duration         int        `gorm:"not null;default:0" json:"duration"` // phút, 0 = không giới hạn
	Difficulty       Difficulty `gorm:"type:varchar(10);not null;default:'MEDIUM'" json:"difficulty"`
	Status           QuizStatus `gorm:"type:varchar(12);not null;default:'DRAFT';index" json:"status"`
	ShuffleQuestions bool       `gorm:"default:false" json:"shuffle_questions"`
	CoverURL         string     `gorm:"size:500" json:"cover_url"`

	CategoryID *uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	Category   *Category  `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:SET NULL;" json:"category,omitempty"`
	Tags       []Tag      `gorm:"many2many:quiz_tags;constraint:OnDelete:CASCADE;" json:"tags"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator   User      `gorm:"foreignKey:CreatedBy;references:ID;constraint:OnDelete:CASCADE;" json:"creator"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	Questions []Question `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE;" json:"questions,omitempty"`
}

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	ensureID(&q.ID)
	return nil
}

// TotalPoints = tổng điểm các câu hỏi (questions phải được preload)
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

type Question struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID        uuid.UUID    `gorm:"type:uuid;not null;index" json:"quiz_id"`
	QuestionText  string       `gorm:"type:text;not null" json:"question_text"`
	QuestionType  QuestionType `gorm:"type:varchar(20);not null" json:"question_type"`
	Points        int          `gorm:"not null;default:1" json:"points"`
	Explanation   string       `gorm:"type:text" json:"explanation"`
	IsAIGenerated bool         `gorm:"column:is_ai_generated;default:false" json:"is_ai_generated"`
	SortOrder     int          `gorm:"default:0" json:"sort_order"`

	// Đáp án mẫu cho SHORT_ANSWER; rỗng thì dùng option duy nhất làm đáp án mẫu
	CorrectAnswerText string `gorm:"type:text" json:"correct_answer_text,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Options   []Option  `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE;" json:"options"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	ensureID(&q.ID)
	return nil
}

// CorrectOption trả về option đúng duy nhất (MULTIPLE_CHOICE / TRUE_FALSE)
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// SampleAnswer trả về đáp án mẫu của SHORT_ANSWER
func (q *Question) SampleAnswer() string {
	if q.CorrectAnswerText != "" {
		return q.CorrectAnswerText
	}
	if len(q.Options) > 0 {
		return q.Options[0].OptionText
	}
	return ""
}

type Option struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;index" json:"question_id"`
	OptionText string    `gorm:"type:text;not null" json:"option_text"`
	IsCorrect  bool      `gorm:"default:false" json:"is_correct"`
	SortOrder  int       `gorm:"default:0" json:"sort_order"`
}

func (o *Option) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
