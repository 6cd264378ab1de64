package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
)

var ErrNoSuchOption = errors.New("no such option")

// Session giữ vị trí câu hiện tại và các câu trả lời phía client.
// Điều hướng không đụng tới đồng hồ.
type Session struct {
	Quiz    *models.TakeQuizDTO
	Cursor  int
	Answers map[uuid.UUID]models.SavedAnswer
}

func NewSession(quiz *models.TakeQuizDTO, saved map[uuid.UUID]models.SavedAnswer) *Session {
	answers := make(map[uuid.UUID]models.SavedAnswer, len(saved))
	for k, v := range saved {
		answers[k] = v
	}
	return &Session{Quiz: quiz, Answers: answers}
}

func (s *Session) Len() int { return len(s.Quiz.Questions) }

func (s *Session) Current() models.TakeQuestionDTO { return s.Quiz.Questions[s.Cursor] }

func (s *Session) CurrentAnswer() *models.SavedAnswer {
	a, ok := s.Answers[s.Current().ID]
	if !ok {
		return nil
	}
	return &a
}

// Next/Prev dừng ở hai đầu, trả false khi không di chuyển được
func (s *Session) Next() bool {
	if s.Cursor+1 >= s.Len() {
		return false
	}
	s.Cursor++
	return true
}

func (s *Session) Prev() bool {
	if s.Cursor == 0 {
		return false
	}
	s.Cursor--
	return true
}

// Goto nhận số thứ tự bắt đầu từ 1
func (s *Session) Goto(n int) error {
	if n < 1 || n > s.Len() {
		return fmt.Errorf("câu %d không tồn tại (1..%d)", n, s.Len())
	}
	s.Cursor = n - 1
	return nil
}

// Choose chọn lựa chọn theo chữ cái (A, B, ...) cho câu trắc nghiệm
func (s *Session) Choose(letter string) error {
	q := s.Current()
	if q.QuestionType == models.ShortAnswer {
		return fmt.Errorf("câu tự luận, hãy gõ câu trả lời")
	}
	letter = strings.ToUpper(strings.TrimSpace(letter))
	idx := strings.Index(optionLetters, letter)
	if len(letter) != 1 || idx < 0 || idx >= len(q.Options) {
		return fmt.Errorf("%q: %w", letter, ErrNoSuchOption)
	}
	id := q.Options[idx].ID
	s.Answers[q.ID] = models.SavedAnswer{SelectedOptionID: &id}
	return nil
}

// AnswerText ghi câu trả lời cho câu SHORT_ANSWER, chuỗi rỗng = xóa
func (s *Session) AnswerText(text string) error {
	q := s.Current()
	if q.QuestionType != models.ShortAnswer {
		return fmt.Errorf("câu trắc nghiệm, hãy chọn chữ cái A, B, ...")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		delete(s.Answers, q.ID)
		return nil
	}
	s.Answers[q.ID] = models.SavedAnswer{Text: &text}
	return nil
}

func (s *Session) AnsweredCount() int {
	n := 0
	for _, q := range s.Quiz.Questions {
		if a, ok := s.Answers[q.ID]; ok && (a.SelectedOptionID != nil || a.Text != nil) {
			n++
		}
	}
	return n
}
