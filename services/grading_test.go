package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/internal/testutil"
	"github.com/vnkhanh/siquiz-backend/models"
)

// withIDs gán id cho câu hỏi/option dựng trong bộ nhớ (không qua DB)
func withIDs(questions ...models.Question) []models.Question {
	for i := range questions {
		questions[i].ID = uuid.New()
		questions[i].SortOrder = i
		for j := range questions[i].Options {
			questions[i].Options[j].ID = uuid.New()
			questions[i].Options[j].QuestionID = questions[i].ID
		}
	}
	return questions
}

func pick(id uuid.UUID) SubmittedAnswer { return SubmittedAnswer{OptionID: &id} }

func TestScorePercent(t *testing.T) {
	cases := []struct {
		earned, total int
		want          float64
	}{
		{0, 0, 0},
		{0, 7, 0},
		{4, 7, 57},
		{7, 7, 100},
		{9, 7, 100},
		{-1, 7, 0},
		{1, 3, 33},
		{2, 3, 67},
	}
	for _, tc := range cases {
		if got := ScorePercent(tc.earned, tc.total); got != tc.want {
			t.Fatalf("ScorePercent(%d, %d) = %v, want %v", tc.earned, tc.total, got, tc.want)
		}
	}
}

func TestGradeWeightedScore(t *testing.T) {
	questions := withIDs(
		testutil.MultipleChoice("Q1", 1, 0, "a", "b", "c", "d"),
		testutil.MultipleChoice("Q2", 1, 1, "a", "b", "c", "d"),
		testutil.MultipleChoice("Q3", 2, 2, "a", "b", "c", "d"),
		testutil.TrueFalse("Q4", 1, true),
		testutil.ShortAnswer("Q5", 2, "Go"),
	)
	answers := map[uuid.UUID]SubmittedAnswer{
		questions[0].ID: pick(testutil.CorrectOptionID(questions[0])),
		questions[1].ID: pick(testutil.CorrectOptionID(questions[1])),
		questions[2].ID: pick(testutil.CorrectOptionID(questions[2])),
		questions[3].ID: pick(testutil.WrongOptionID(questions[3])),
		questions[4].ID: {Text: "Rust"},
	}

	g := NewScorer().Grade(questions, answers)
	if g.TotalPoints != 7 || g.EarnedPoints != 4 {
		t.Fatalf("points = %d/%d, want 4/7", g.EarnedPoints, g.TotalPoints)
	}
	if g.Score != 57 {
		t.Fatalf("score = %v, want 57", g.Score)
	}
	if g.CorrectCount != 3 || g.AnsweredCount != 5 {
		t.Fatalf("correct=%d answered=%d, want 3 and 5", g.CorrectCount, g.AnsweredCount)
	}
	if len(g.Items) != 5 {
		t.Fatalf("items = %d, want 5", len(g.Items))
	}
	if g.Items[3].IsCorrect || g.Items[3].PointsEarned != 0 {
		t.Fatalf("wrong true/false answer graded as correct")
	}
}

func TestGradeUnansweredIsIncorrect(t *testing.T) {
	questions := withIDs(
		testutil.MultipleChoice("Q1", 1, 0, "a", "b"),
		testutil.ShortAnswer("Q2", 1, "x"),
	)
	g := NewScorer().Grade(questions, map[uuid.UUID]SubmittedAnswer{
		questions[1].ID: {Text: "   "},
	})
	if g.Score != 0 || g.AnsweredCount != 0 || g.CorrectCount != 0 {
		t.Fatalf("grading = %+v, want zero score and no answers", g)
	}
	for _, item := range g.Items {
		if item.Answered || item.IsCorrect {
			t.Fatalf("item %s answered=%v correct=%v, want both false", item.Question.QuestionText, item.Answered, item.IsCorrect)
		}
	}
}

func TestTextHeuristicGraderContainsSample(t *testing.T) {
	q := withIDs(testutil.ShortAnswer("DOM là gì?", 1, "Document Object Model"))[0]
	grader := TextHeuristicGrader{}

	if !grader.Grade(&q, SubmittedAnswer{Text: "the document object model is a tree of nodes"}) {
		t.Fatalf("expected answer containing the sample to be correct")
	}
	if !grader.Grade(&q, SubmittedAnswer{Text: "DOCUMENT   object\nMODEL"}) {
		t.Fatalf("expected whitespace and case to be ignored")
	}
	if grader.Grade(&q, SubmittedAnswer{Text: "a browser API"}) {
		t.Fatalf("expected unrelated answer to be incorrect")
	}
}

func TestTextHeuristicGraderFallsBackToOption(t *testing.T) {
	q := withIDs(models.Question{
		QuestionType: models.ShortAnswer,
		Points:       1,
		Options:      []models.Option{{OptionText: "Goroutine"}},
	})[0]
	if !(TextHeuristicGrader{}).Grade(&q, SubmittedAnswer{Text: "goroutine"}) {
		t.Fatalf("expected the only option to act as the sample answer")
	}
}

func TestBooleanOptionGraderAcceptsLabel(t *testing.T) {
	q := withIDs(testutil.TrueFalse("Go có GC?", 1, true))[0]
	grader := BooleanOptionGrader{}

	if !grader.Grade(&q, pick(testutil.CorrectOptionID(q))) {
		t.Fatalf("expected correct option id to be accepted")
	}
	if !grader.Grade(&q, SubmittedAnswer{Text: " đúng "}) {
		t.Fatalf("expected matching label to be accepted")
	}
	if grader.Grade(&q, SubmittedAnswer{Text: "Sai"}) {
		t.Fatalf("expected wrong label to be rejected")
	}
}

type alwaysCorrect struct{}

func (alwaysCorrect) Grade(*models.Question, SubmittedAnswer) bool { return true }

func TestScorerUseReplacesStrategy(t *testing.T) {
	questions := withIDs(testutil.ShortAnswer("Q", 3, "exact"))
	scorer := NewScorer()
	scorer.Use(models.ShortAnswer, alwaysCorrect{})

	g := scorer.Grade(questions, map[uuid.UUID]SubmittedAnswer{questions[0].ID: {Text: "anything"}})
	if g.Score != 100 {
		t.Fatalf("score = %v, want 100 with custom grader", g.Score)
	}
}

func TestAnswerValueResolve(t *testing.T) {
	optionID := uuid.New()

	var fromString AnswerValue
	if err := json.Unmarshal([]byte(`"`+optionID.String()+`"`), &fromString); err != nil {
		t.Fatalf("unmarshal string failed: %v", err)
	}
	if got := fromString.Resolve(models.MultipleChoice); got.OptionID == nil || *got.OptionID != optionID {
		t.Fatalf("string option id resolved to %+v", got)
	}

	var fromObject AnswerValue
	if err := json.Unmarshal([]byte(`{"option_id":"`+optionID.String()+`"}`), &fromObject); err != nil {
		t.Fatalf("unmarshal object failed: %v", err)
	}
	if got := fromObject.Resolve(models.TrueFalse); got.OptionID == nil || *got.OptionID != optionID {
		t.Fatalf("object option id resolved to %+v", got)
	}

	var text AnswerValue
	if err := json.Unmarshal([]byte(`{"text":"hello"}`), &text); err != nil {
		t.Fatalf("unmarshal text failed: %v", err)
	}
	if got := text.Resolve(models.ShortAnswer); got.Text != "hello" || got.OptionID != nil {
		t.Fatalf("short answer resolved to %+v", got)
	}

	if got := StringAnswer("true").Resolve(models.TrueFalse); got.OptionID != nil || got.Text != "true" {
		t.Fatalf("true/false label resolved to %+v", got)
	}
	if got := (AnswerValue{OptionID: "not-a-uuid"}).Resolve(models.MultipleChoice); !got.Empty() {
		t.Fatalf("invalid option id should resolve to empty, got %+v", got)
	}
}
