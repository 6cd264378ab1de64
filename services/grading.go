package services

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
)

// SubmittedAnswer là câu trả lời đã được chuẩn hóa theo loại câu hỏi
type SubmittedAnswer struct {
	OptionID *uuid.UUID
	Text     string
}

func (a SubmittedAnswer) Empty() bool {
	return a.OptionID == nil && strings.TrimSpace(a.Text) == ""
}

// AnswerValue nhận cả hai dạng payload:
//
//	"answers": { "<questionId>": "<optionId hoặc text>" }
//	"answers": { "<questionId>": { "option_id": "...", "text": "..." } }
type AnswerValue struct {
	OptionID string `json:"option_id"`
	Text     string `json:"text"`
	raw      string
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.raw = s
		return nil
	}
	type plain AnswerValue
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = AnswerValue(p)
	return nil
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.raw != "" {
		return json.Marshal(v.raw)
	}
	type plain AnswerValue
	return json.Marshal(plain(v))
}

func StringAnswer(s string) AnswerValue { return AnswerValue{raw: s} }

// Resolve diễn giải giá trị theo loại câu hỏi
func (v AnswerValue) Resolve(t models.QuestionType) SubmittedAnswer {
	switch t {
	case models.ShortAnswer:
		text := v.Text
		if text == "" {
			text = v.raw
		}
		return SubmittedAnswer{Text: text}
	default:
		if v.OptionID != "" {
			if id, err := uuid.Parse(v.OptionID); err == nil {
				return SubmittedAnswer{OptionID: &id}
			}
			return SubmittedAnswer{}
		}
		if v.raw != "" {
			if id, err := uuid.Parse(v.raw); err == nil {
				return SubmittedAnswer{OptionID: &id}
			}
			return SubmittedAnswer{Text: v.raw}
		}
		return SubmittedAnswer{Text: v.Text}
	}
}

// Grader chấm một câu hỏi. Mỗi loại câu hỏi có một chiến lược riêng.
type Grader interface {
	Grade(q *models.Question, a SubmittedAnswer) bool
}

// ExactOptionGrader: đúng khi chọn đúng option is_correct
type ExactOptionGrader struct{}

func (ExactOptionGrader) Grade(q *models.Question, a SubmittedAnswer) bool {
	if a.OptionID == nil {
		return false
	}
	correct := q.CorrectOption()
	return correct != nil && correct.ID == *a.OptionID
}

// BooleanOptionGrader: như ExactOption, chấp nhận thêm "true"/"false" khớp nhãn option đúng
type BooleanOptionGrader struct{}

func (BooleanOptionGrader) Grade(q *models.Question, a SubmittedAnswer) bool {
	correct := q.CorrectOption()
	if correct == nil {
		return false
	}
	if a.OptionID != nil {
		return correct.ID == *a.OptionID
	}
	text := strings.TrimSpace(a.Text)
	return text != "" && strings.EqualFold(text, strings.TrimSpace(correct.OptionText))
}

// TextHeuristicGrader: đúng khi câu trả lời chứa đáp án mẫu (không phân biệt hoa thường).
// Đây là heuristic, có thể chấm sai câu trả lời diễn đạt khác.
type TextHeuristicGrader struct{}

func (TextHeuristicGrader) Grade(q *models.Question, a SubmittedAnswer) bool {
	sample := normalizeText(q.SampleAnswer())
	if sample == "" {
		return false
	}
	return strings.Contains(normalizeText(a.Text), sample)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

type GradedQuestion struct {
	Question     *models.Question
	Answer       SubmittedAnswer
	Answered     bool
	IsCorrect    bool
	PointsEarned int
}

type Grading struct {
	Items         []GradedQuestion
	EarnedPoints  int
	TotalPoints   int
	CorrectCount  int
	AnsweredCount int
	Score         float64
}

type Scorer struct {
	graders map[models.QuestionType]Grader
}

func NewScorer() *Scorer {
	return &Scorer{graders: map[models.QuestionType]Grader{
		models.MultipleChoice: ExactOptionGrader{},
		models.TrueFalse:      BooleanOptionGrader{},
		models.ShortAnswer:    TextHeuristicGrader{},
	}}
}

// Use thay chiến lược chấm cho một loại câu hỏi
func (s *Scorer) Use(t models.QuestionType, g Grader) {
	s.graders[t] = g
}

// Grade chấm toàn bộ câu hỏi theo thứ tự truyền vào. Câu bỏ trống = sai, không điểm thành phần.
func (s *Scorer) Grade(questions []models.Question, answers map[uuid.UUID]SubmittedAnswer) Grading {
	out := Grading{Items: make([]GradedQuestion, 0, len(questions))}
	for i := range questions {
		q := &questions[i]
		out.TotalPoints += q.Points

		item := GradedQuestion{Question: q}
		if a, ok := answers[q.ID]; ok && !a.Empty() {
			item.Answer = a
			item.Answered = true
			out.AnsweredCount++
			if g, ok := s.graders[q.QuestionType]; ok && g.Grade(q, a) {
				item.IsCorrect = true
				item.PointsEarned = q.Points
				out.EarnedPoints += q.Points
				out.CorrectCount++
			}
		}
		out.Items = append(out.Items, item)
	}
	out.Score = ScorePercent(out.EarnedPoints, out.TotalPoints)
	return out
}

// ScorePercent = round(100 * earned / total), luôn nằm trong [0, 100]
func ScorePercent(earned, total int) float64 {
	if total <= 0 || earned <= 0 {
		return 0
	}
	if earned > total {
		earned = total
	}
	return math.Round(100 * float64(earned) / float64(total))
}
