package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/vnkhanh/siquiz-backend/internal/testutil"
	"github.com/vnkhanh/siquiz-backend/models"
)

type stubLLM struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   string
	err     error
}

func (s *stubLLM) GenerateText(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

const generatedReply = "```json\n" + `[
  {"question_text": "Goroutine là gì?", "question_type": "multiple_choice", "explanation": "Luồng nhẹ do runtime quản lý",
   "options": [{"option_text": "Luồng nhẹ", "is_correct": true}, {"option_text": "Process", "is_correct": false},
               {"option_text": "Thread OS", "is_correct": false}, {"option_text": "Coroutine C", "is_correct": false}]},
  {"question_text": "Câu lỗi", "question_type": "MULTIPLE_CHOICE",
   "options": [{"option_text": "A", "is_correct": true}, {"option_text": "B", "is_correct": true}]},
  {"question_text": "Go có GC?", "question_type": "TRUE_FALSE", "points": 2,
   "options": [{"option_text": "Đúng", "is_correct": true}, {"option_text": "Sai", "is_correct": false}]},
  {"question_text": "Từ khóa khởi chạy goroutine?", "question_type": "SHORT_ANSWER", "correct_answer_text": "go"}
]` + "\n```"

func newGeneratorFixture(t *testing.T, llm TextGenerator) (*QuestionGenerator, *Actor, *models.Quiz) {
	t.Helper()
	db := testutil.NewDB(t)
	creator := testutil.SeedUser(t, db, "creator@example.com", models.RoleCreator)
	quiz := testutil.SeedQuiz(t, db, creator.ID, models.QuizDraft, 10)
	gen := NewQuestionGenerator(db, llm, NewQuizService(db, nil, nil)).WithBackoff(0)
	return gen, &Actor{ID: creator.ID, Role: creator.Role}, &quiz
}

func TestFromTopicKeepsValidQuestions(t *testing.T) {
	llm := &stubLLM{reply: generatedReply}
	gen, actor, quiz := newGeneratorFixture(t, llm)

	created, err := gen.FromTopic(context.Background(), actor, quiz.ID, GenerateRequest{Topic: "Go concurrency", Count: 2})
	if err != nil {
		t.Fatalf("FromTopic failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %d, want 2 (capped at count)", len(created))
	}
	for _, q := range created {
		if !q.IsAIGenerated || q.QuizID != quiz.ID {
			t.Fatalf("question %q not marked as generated for quiz", q.QuestionText)
		}
	}
	if created[0].QuestionType != models.MultipleChoice {
		t.Fatalf("question type not normalised: %s", created[0].QuestionType)
	}
	if !strings.Contains(llm.prompts[0], "Go concurrency") || !strings.Contains(llm.prompts[0], "đúng 2 câu") {
		t.Fatalf("prompt missing topic or count: %s", llm.prompts[0])
	}

	var logs []models.AIGenerationLog
	if err := gen.db.Find(&logs).Error; err != nil {
		t.Fatalf("load logs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Accepted != 2 || logs[0].Requested != 2 || logs[0].Source != "topic" {
		t.Fatalf("generation log = %+v", logs)
	}
	if len(logs[0].PromptHash) != 64 {
		t.Fatalf("prompt hash = %q, want sha256 hex", logs[0].PromptHash)
	}
}

func TestFromTopicFiltersByRequestedType(t *testing.T) {
	gen, actor, quiz := newGeneratorFixture(t, &stubLLM{reply: generatedReply})

	created, err := gen.FromTopic(context.Background(), actor, quiz.ID,
		GenerateRequest{Topic: "Go", Count: 5, QuestionType: models.ShortAnswer})
	if err != nil {
		t.Fatalf("FromTopic failed: %v", err)
	}
	if len(created) != 1 || created[0].CorrectAnswerText != "go" {
		t.Fatalf("created = %+v, want the single short answer", created)
	}
}

func TestFromTopicRetriesThenFails(t *testing.T) {
	llm := &stubLLM{err: errors.New("quota exceeded")}
	gen, actor, quiz := newGeneratorFixture(t, llm)

	_, err := gen.FromTopic(context.Background(), actor, quiz.ID, GenerateRequest{Topic: "Go", Count: 3})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("FromTopic = %v, want ErrUpstream", err)
	}
	if llm.calls != 3 {
		t.Fatalf("llm calls = %d, want 3 retries", llm.calls)
	}

	var entry models.AIGenerationLog
	if err := gen.db.First(&entry).Error; err != nil {
		t.Fatalf("failure should still be logged: %v", err)
	}
	if !strings.Contains(entry.Error, "quota exceeded") || entry.Accepted != 0 {
		t.Fatalf("log entry = %+v", entry)
	}
}

func TestFromTopicRejectsGarbage(t *testing.T) {
	gen, actor, quiz := newGeneratorFixture(t, &stubLLM{reply: "Xin lỗi, tôi không thể giúp."})

	if _, err := gen.FromTopic(context.Background(), actor, quiz.ID, GenerateRequest{Topic: "Go", Count: 1}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("FromTopic with non-JSON reply = %v, want ErrUpstream", err)
	}
}

func TestGenerateRequestValidation(t *testing.T) {
	llm := &stubLLM{reply: generatedReply}
	gen, actor, quiz := newGeneratorFixture(t, llm)
	ctx := context.Background()
	var verr *ValidationError

	if _, err := gen.FromTopic(ctx, actor, quiz.ID, GenerateRequest{Count: 2}); !errors.As(err, &verr) {
		t.Fatalf("missing topic = %v, want ValidationError", err)
	}
	if _, err := gen.FromTopic(ctx, actor, quiz.ID, GenerateRequest{Topic: "Go", Count: 21}); !errors.As(err, &verr) {
		t.Fatalf("count 21 = %v, want ValidationError", err)
	}
	if _, err := gen.FromTopic(ctx, actor, quiz.ID, GenerateRequest{Topic: "Go", Count: 1, Difficulty: "EXTREME"}); !errors.As(err, &verr) {
		t.Fatalf("bad difficulty = %v, want ValidationError", err)
	}
	stranger := &Actor{ID: actor.ID, Role: models.RoleCreator}
	stranger.ID[0] ^= 0xff
	if _, err := gen.FromTopic(ctx, stranger, quiz.ID, GenerateRequest{Topic: "Go", Count: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-owner = %v, want ErrNotFound on draft", err)
	}
	if llm.calls != 0 {
		t.Fatalf("llm must not be called for rejected requests, calls = %d", llm.calls)
	}
}

func TestFromDocumentUsesChunks(t *testing.T) {
	llm := &stubLLM{reply: generatedReply}
	gen, actor, quiz := newGeneratorFixture(t, llm)

	text := "Go là ngôn ngữ lập trình do Google phát triển. Goroutine giúp chạy đồng thời."
	created, err := gen.FromDocument(context.Background(), actor, quiz.ID, text, GenerateRequest{Count: 3})
	if err != nil {
		t.Fatalf("FromDocument failed: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created = %d, want 3", len(created))
	}
	if llm.calls != 1 || !strings.Contains(llm.prompts[0], "Goroutine giúp chạy đồng thời") {
		t.Fatalf("expected one call with the chunk text, got %d", llm.calls)
	}

	var entry models.AIGenerationLog
	gen.db.First(&entry)
	if entry.Source != "document" || entry.Accepted != 3 {
		t.Fatalf("log entry = %+v", entry)
	}

	if _, err := gen.FromDocument(context.Background(), actor, quiz.ID, "   ", GenerateRequest{Count: 1}); err == nil {
		t.Fatalf("expected error for empty document")
	}
}
