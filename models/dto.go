package models

import (
	"time"

	"github.com/google/uuid"
)

// ===== Dữ liệu trả về khi làm bài (không có đáp án) =====

type TakeOptionDTO struct {
	ID         uuid.UUID `json:"id"`
	OptionText string    `json:"option_text"`
}

type TakeQuestionDTO struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Points       int             `json:"points"`
	Options      []TakeOptionDTO `json:"options"`
}

type TakeQuizDTO struct {
	ID            uuid.UUID         `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Duration      int               `json:"duration"`
	Difficulty    Difficulty        `json:"difficulty"`
	CoverURL      string            `json:"cover_url,omitempty"`
	Category      string            `json:"category,omitempty"`
	Tags          []string          `json:"tags"`
	QuestionCount int               `json:"question_count"`
	TotalPoints   int               `json:"total_points"`
	Questions     []TakeQuestionDTO `json:"questions"`
}

// AttemptProgressDTO: trạng thái lượt làm đang dở (để resume)
type AttemptProgressDTO struct {
	AttemptID  uuid.UUID                 `json:"attempt_id"`
	Status     AttemptStatus             `json:"status"`
	StartedAt  time.Time                 `json:"started_at"`
	DeadlineAt *time.Time                `json:"deadline_at"`
	Quiz       *TakeQuizDTO              `json:"quiz"`
	Answers    map[uuid.UUID]SavedAnswer `json:"answers"`
}

type SavedAnswer struct {
	SelectedOptionID *uuid.UUID `json:"option_id,omitempty"`
	Text             *string    `json:"text,omitempty"`
}

// ===== Kết quả sau khi nộp bài =====

type ResultOptionDTO struct {
	ID         uuid.UUID `json:"id"`
	OptionText string    `json:"option_text"`
	IsCorrect  bool      `json:"is_correct"`
}

type ResultQuestionDTO struct {
	ID                uuid.UUID         `json:"id"`
	QuestionText      string            `json:"question_text"`
	QuestionType      QuestionType      `json:"question_type"`
	Points            int               `json:"points"`
	PointsEarned      int               `json:"points_earned"`
	IsCorrect         bool              `json:"is_correct"`
	Answered          bool              `json:"answered"`
	SelectedOptionID  *uuid.UUID        `json:"selected_option_id"`
	ShortAnswerText   *string           `json:"short_answer_text"`
	CorrectOptionID   *uuid.UUID        `json:"correct_option_id,omitempty"`
	CorrectAnswerText string            `json:"correct_answer_text,omitempty"`
	Explanation       string            `json:"explanation"`
	Options           []ResultOptionDTO `json:"options"`
}

type AttemptResultDTO struct {
	AttemptID       uuid.UUID           `json:"attempt_id"`
	QuizID          uuid.UUID           `json:"quiz_id"`
	QuizTitle       string              `json:"quiz_title"`
	Status          AttemptStatus       `json:"status"`
	Score           float64             `json:"score"`
	EarnedPoints    int                 `json:"earned_points"`
	TotalPoints     int                 `json:"total_points"`
	CorrectCount    int                 `json:"correct_count"`
	IncorrectCount  int                 `json:"incorrect_count"`
	UnansweredCount int                 `json:"unanswered_count"`
	TimedOut        bool                `json:"timed_out"`
	StartedAt       time.Time           `json:"started_at"`
	DeadlineAt      *time.Time          `json:"deadline_at"`
	CompletedAt     *time.Time          `json:"completed_at"`
	ElapsedSeconds  int64               `json:"elapsed_seconds"`
	Questions       []ResultQuestionDTO `json:"questions"`
}

// AttemptSummaryDTO cho danh sách lịch sử làm bài
type AttemptSummaryDTO struct {
	ID          uuid.UUID     `json:"id"`
	QuizID      uuid.UUID     `json:"quiz_id"`
	QuizTitle   string        `json:"quiz_title"`
	Status      AttemptStatus `json:"status"`
	Score       float64       `json:"score"`
	TimedOut    bool          `json:"timed_out"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at"`
}

// ===== Danh sách quiz =====

type QuizListItem struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Description   string     `json:"description"`
	Duration      int        `json:"duration"`
	Difficulty    Difficulty `json:"difficulty"`
	Status        QuizStatus `json:"status"`
	CoverURL      string     `json:"cover_url"`
	CategoryID    *uuid.UUID `json:"category_id"`
	CategoryName  string     `json:"category_name,omitempty"`
	Tags          []string   `json:"tags"`
	QuestionCount int64      `json:"question_count"`
	AttemptCount  int64      `json:"attempt_count"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	CreatorName   string     `json:"creator_name"`
	CreatedAt     time.Time  `json:"created_at"`
}

// QuizStatsDTO thống kê lượt làm của một quiz cho người tạo
type QuizStatsDTO struct {
	QuizID          uuid.UUID `json:"quiz_id"`
	Attempts        int64     `json:"attempts"`
	Completed       int64     `json:"completed"`
	AverageScore    float64   `json:"average_score"`
	BestScore       float64   `json:"best_score"`
	PassRate        float64   `json:"pass_rate"` // % lượt đạt từ 50 điểm
	TimedOutCount   int64     `json:"timed_out_count"`
	AverageDuration float64   `json:"average_duration_seconds"`
}
