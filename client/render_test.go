package client

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
)

func TestRenderQuestionMarksSelection(t *testing.T) {
	quiz := sampleQuiz()
	q := quiz.Questions[0]
	chosen := q.Options[1].ID

	var buf bytes.Buffer
	RenderQuestion(&buf, q, 0, 3, &models.SavedAnswer{SelectedOptionID: &chosen})
	out := buf.String()

	for _, want := range []string{"Câu 1/3 (1 điểm)", "   A. var", " * B. const", "   C. let"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderQuestionShortAnswer(t *testing.T) {
	q := sampleQuiz().Questions[2]
	text := "go"
	var buf bytes.Buffer
	RenderQuestion(&buf, q, 2, 3, &models.SavedAnswer{Text: &text})
	if !strings.Contains(buf.String(), "Trả lời: go") {
		t.Fatalf("short answer not shown:\n%s", buf.String())
	}
}

func TestRenderResult(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	completed := started.Add(2*time.Minute + 5*time.Second)
	right, wrong := uuid.New(), uuid.New()
	answer := "goroutine"

	r := &models.AttemptResultDTO{
		QuizTitle:       "Go căn bản",
		Score:           67,
		EarnedPoints:    2,
		TotalPoints:     3,
		CorrectCount:    1,
		IncorrectCount:  0,
		UnansweredCount: 1,
		TimedOut:        true,
		StartedAt:       started,
		CompletedAt:     &completed,
		Questions: []models.ResultQuestionDTO{
			{
				QuestionText: "Từ khóa khai báo hằng?", QuestionType: models.MultipleChoice,
				Points: 2, PointsEarned: 2, IsCorrect: true, Answered: true, SelectedOptionID: &right,
				Explanation: "const khai báo hằng số",
				Options: []models.ResultOptionDTO{
					{ID: wrong, OptionText: "var"},
					{ID: right, OptionText: "const", IsCorrect: true},
				},
			},
			{
				QuestionText: "Từ khóa chạy goroutine?", QuestionType: models.ShortAnswer,
				Points: 1, ShortAnswerText: &answer, CorrectAnswerText: "go",
			},
		},
	}

	var buf bytes.Buffer
	RenderResult(&buf, r)
	out := buf.String()
	for _, want := range []string{
		"Điểm: 67/100",
		"Đúng: 1  Sai: 0  Bỏ trống: 1",
		"Thời gian làm: 02:05",
		"Hết giờ",
		"1. [ĐÚNG]",
		"B. const ✓ (bạn chọn)",
		"Giải thích: const khai báo hằng số",
		"2. [BỎ TRỐNG]",
		"Đáp án: go",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestElapsedFallsBackToServerValue(t *testing.T) {
	r := &models.AttemptResultDTO{ElapsedSeconds: 90}
	if got := elapsed(r); got != 90*time.Second {
		t.Fatalf("elapsed = %v, want 90s", got)
	}
}
