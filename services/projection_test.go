package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/internal/testutil"
	"github.com/vnkhanh/siquiz-backend/models"
)

func TestProjectForTakingHidesAnswers(t *testing.T) {
	quiz := &models.Quiz{
		ID:       uuid.New(),
		Title:    "Web cơ bản",
		Duration: 10,
		Category: &models.Category{Name: "Lập trình"},
		Tags:     []models.Tag{{Name: "html"}},
		Questions: withIDs(
			testutil.MultipleChoice("HTML là gì?", 1, 1, "Ngôn ngữ lập trình", "Ngôn ngữ đánh dấu"),
			testutil.ShortAnswer("DOM viết tắt của?", 2, "Document Object Model"),
		),
	}
	quiz.Questions[0].Explanation = "HTML là ngôn ngữ đánh dấu"

	dto := ProjectForTaking(quiz)
	if dto.QuestionCount != 2 || dto.TotalPoints != 3 {
		t.Fatalf("count=%d total=%d, want 2 and 3", dto.QuestionCount, dto.TotalPoints)
	}
	if dto.Category != "Lập trình" || len(dto.Tags) != 1 || dto.Tags[0] != "html" {
		t.Fatalf("category/tags not projected: %+v", dto)
	}
	if len(dto.Questions[0].Options) != 2 {
		t.Fatalf("multiple choice options = %d, want 2", len(dto.Questions[0].Options))
	}
	if len(dto.Questions[1].Options) != 0 {
		t.Fatalf("short answer should not expose options")
	}

	raw, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	body := string(raw)
	for _, leak := range []string{"is_correct", "explanation", "correct_answer_text", "Document Object Model", "HTML là ngôn ngữ"} {
		if strings.Contains(body, leak) {
			t.Fatalf("projection leaks %q: %s", leak, body)
		}
	}
}

func TestApplyOrderKeepsUnknownQuestionsLast(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	dto := &models.TakeQuizDTO{Questions: []models.TakeQuestionDTO{{ID: a}, {ID: b}, {ID: c}}}

	out := ApplyOrder(dto, []uuid.UUID{c, a})
	got := []uuid.UUID{out.Questions[0].ID, out.Questions[1].ID, out.Questions[2].ID}
	want := []uuid.UUID{c, a, b}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if dto.Questions[0].ID != a {
		t.Fatalf("ApplyOrder must not mutate the input")
	}
}

func TestBuildResultCounts(t *testing.T) {
	questions := withIDs(
		testutil.MultipleChoice("Q1", 1, 0, "a", "b"),
		testutil.MultipleChoice("Q2", 1, 0, "a", "b"),
		testutil.ShortAnswer("Q3", 1, "go"),
	)
	quiz := &models.Quiz{ID: uuid.New(), Title: "R", Questions: questions}
	started := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	attempt := &models.QuizAttempt{
		ID:           uuid.New(),
		QuizID:       quiz.ID,
		Status:       models.AttemptCompleted,
		Score:        33,
		EarnedPoints: 1,
		TotalPoints:  3,
		CorrectCount: 1,
		StartedAt:    started,
		CompletedAt:  &completed,
	}
	correct := testutil.CorrectOptionID(questions[0])
	wrong := testutil.WrongOptionID(questions[1])
	answers := []models.Answer{
		{QuestionID: questions[0].ID, SelectedOptionID: &correct, IsCorrect: true, PointsEarned: 1},
		{QuestionID: questions[1].ID, SelectedOptionID: &wrong},
	}

	res := BuildResult(attempt, quiz, answers)
	if res.IncorrectCount != 1 || res.UnansweredCount != 1 || res.CorrectCount != 1 {
		t.Fatalf("correct=%d incorrect=%d unanswered=%d, want 1/1/1", res.CorrectCount, res.IncorrectCount, res.UnansweredCount)
	}
	if res.ElapsedSeconds != 90 {
		t.Fatalf("elapsed = %d, want 90", res.ElapsedSeconds)
	}
	if res.Questions[0].CorrectOptionID == nil || *res.Questions[0].CorrectOptionID != correct {
		t.Fatalf("result should reveal the correct option")
	}
	if res.Questions[2].CorrectAnswerText != "go" {
		t.Fatalf("short answer sample = %q, want %q", res.Questions[2].CorrectAnswerText, "go")
	}
}
