package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MaxGenerateCount  = 20
	sourceChunkLength = 2000
)

type GenerateRequest struct {
	Topic        string              `json:"topic" form:"topic"`
	Count        int                 `json:"count" form:"count" binding:"required,min=1,max=20"`
	QuestionType models.QuestionType `json:"question_type" form:"question_type"`
	Difficulty   models.Difficulty   `json:"difficulty" form:"difficulty"`
	Language     string              `json:"language" form:"language"`
}

// QuestionGenerator sinh câu hỏi bằng LLM, lọc câu không hợp lệ rồi lưu vào quiz
type QuestionGenerator struct {
	db      *gorm.DB
	llm     TextGenerator
	quizzes *QuizService
	retries int
	backoff time.Duration
}

func NewQuestionGenerator(db *gorm.DB, llm TextGenerator, quizzes *QuizService) *QuestionGenerator {
	return &QuestionGenerator{db: db, llm: llm, quizzes: quizzes, retries: 3, backoff: time.Second}
}

// WithBackoff đổi thời gian chờ giữa các lần retry (test dùng 0)
func (g *QuestionGenerator) WithBackoff(d time.Duration) *QuestionGenerator {
	g.backoff = d
	return g
}

func (g *QuestionGenerator) FromTopic(ctx context.Context, actor *Actor, quizID uuid.UUID, req GenerateRequest) ([]models.Question, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, NewValidationError("topic", "chủ đề không được để trống")
	}
	if err := validateGenerateRequest(&req); err != nil {
		return nil, err
	}
	quiz, err := g.quizzes.managed(g.db.WithContext(ctx), actor, quizID)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(req, fmt.Sprintf("Chủ đề: %s", strings.TrimSpace(req.Topic)), req.Count)
	raw, err := g.generate(ctx, prompt)
	logEntry := models.AIGenerationLog{
		QuizID:      quiz.ID,
		RequestedBy: actor.ID,
		Source:      "topic",
		PromptHash:  hashPrompt(prompt),
		Requested:   req.Count,
	}
	if err != nil {
		logEntry.Error = err.Error()
		g.writeLog(ctx, &logEntry)
		return nil, fmt.Errorf("sinh câu hỏi thất bại: %v: %w", err, ErrUpstream)
	}

	accepted, rejected := parseGenerated(raw, req)
	logEntry.Response = rawJSON(raw)
	return g.persist(ctx, quiz, &logEntry, accepted, rejected, req.Count)
}

// FromDocument chia văn bản thành các đoạn và sinh câu hỏi lần lượt cho tới khi đủ số lượng
func (g *QuestionGenerator) FromDocument(ctx context.Context, actor *Actor, quizID uuid.UUID, text string, req GenerateRequest) ([]models.Question, error) {
	if err := validateGenerateRequest(&req); err != nil {
		return nil, err
	}
	quiz, err := g.quizzes.managed(g.db.WithContext(ctx), actor, quizID)
	if err != nil {
		return nil, err
	}

	chunks := SplitIntoChunks(text, sourceChunkLength)
	if len(chunks) == 0 {
		return nil, NewValidationError("file", "không có nội dung để xử lý")
	}
	if len(chunks) > req.Count {
		chunks = chunks[:req.Count]
	}
	perChunk := (req.Count + len(chunks) - 1) / len(chunks)

	var (
		accepted  []QuestionInput
		rejected  int
		responses []json.RawMessage
		lastErr   error
		hasher    = sha256.New()
	)
	for idx, chunk := range chunks {
		if len(accepted) >= req.Count {
			break
		}
		want := perChunk
		if remain := req.Count - len(accepted); remain < want {
			want = remain
		}
		prompt := buildPrompt(req, fmt.Sprintf("Đoạn văn số %d:\n%s", idx+1, chunk), want)
		hasher.Write([]byte(prompt))

		raw, err := g.generate(ctx, prompt)
		if err != nil {
			log.Printf("[Generator] Gemini lỗi ở đoạn %d: %v", idx+1, err)
			lastErr = err
			continue
		}
		if r := rawJSON(raw); r != nil {
			responses = append(responses, json.RawMessage(r))
		}
		ok, bad := parseGenerated(raw, req)
		if len(ok) > want {
			bad += len(ok) - want
			ok = ok[:want]
		}
		accepted = append(accepted, ok...)
		rejected += bad
	}

	logEntry := models.AIGenerationLog{
		QuizID:      quiz.ID,
		RequestedBy: actor.ID,
		Source:      "document",
		PromptHash:  hex.EncodeToString(hasher.Sum(nil)),
		Requested:   req.Count,
	}
	if len(responses) > 0 {
		if b, err := json.Marshal(responses); err == nil {
			logEntry.Response = datatypes.JSON(b)
		}
	}
	if len(accepted) == 0 && lastErr != nil {
		logEntry.Error = lastErr.Error()
		g.writeLog(ctx, &logEntry)
		return nil, fmt.Errorf("sinh câu hỏi thất bại: %v: %w", lastErr, ErrUpstream)
	}
	return g.persist(ctx, quiz, &logEntry, accepted, rejected, req.Count)
}

func validateGenerateRequest(req *GenerateRequest) error {
	verr := &ValidationError{}
	if req.Count < 1 || req.Count > MaxGenerateCount {
		verr.Add("count", fmt.Sprintf("số câu hỏi phải từ 1 đến %d", MaxGenerateCount))
	}
	if req.QuestionType != "" && !req.QuestionType.Valid() {
		verr.Add("question_type", "loại câu hỏi không hợp lệ")
	}
	if req.Difficulty != "" && !req.Difficulty.Valid() {
		verr.Add("difficulty", "độ khó phải là EASY, MEDIUM hoặc HARD")
	}
	return verr.OrNil()
}

func (g *QuestionGenerator) persist(ctx context.Context, quiz *models.Quiz, logEntry *models.AIGenerationLog, accepted []QuestionInput, rejected, count int) ([]models.Question, error) {
	if len(accepted) > count {
		rejected += len(accepted) - count
		accepted = accepted[:count]
	}
	aiQuestionsGenerated.WithLabelValues("accepted").Add(float64(len(accepted)))
	aiQuestionsGenerated.WithLabelValues("rejected").Add(float64(rejected))

	if len(accepted) == 0 {
		logEntry.Error = "không có câu hỏi hợp lệ trong phản hồi"
		g.writeLog(ctx, logEntry)
		return nil, fmt.Errorf("AI không trả câu hỏi hợp lệ: %w", ErrUpstream)
	}

	var created []models.Question
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = appendQuestions(tx, quiz.ID, accepted, true)
		if err != nil {
			return err
		}
		logEntry.Accepted = len(created)
		return tx.Create(logEntry).Error
	})
	if err != nil {
		return nil, err
	}
	g.quizzes.cache.InvalidateQuiz(ctx, quiz.ID)
	return created, nil
}

func (g *QuestionGenerator) writeLog(ctx context.Context, entry *models.AIGenerationLog) {
	if err := g.db.WithContext(ctx).Create(entry).Error; err != nil {
		log.Printf("[Generator] ghi AIGenerationLog lỗi: %v", err)
	}
}

// generate gọi LLM, retry với backoff tuyến tính
func (g *QuestionGenerator) generate(ctx context.Context, prompt string) (string, error) {
	var (
		resp string
		err  error
	)
	for i := 0; i < g.retries; i++ {
		resp, err = g.llm.GenerateText(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if i == g.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(i+1) * g.backoff):
		}
	}
	return "", err
}

func buildPrompt(req GenerateRequest, source string, count int) string {
	qType := "MULTIPLE_CHOICE, TRUE_FALSE hoặc SHORT_ANSWER (trộn các loại)"
	if req.QuestionType != "" {
		qType = string(req.QuestionType)
	}
	difficulty := models.DifficultyMedium
	if req.Difficulty != "" {
		difficulty = req.Difficulty
	}
	lang := req.Language
	if lang == "" {
		lang = "tiếng Việt"
	}

	return fmt.Sprintf(`Bạn là AI tạo câu hỏi kiểm tra giáo dục.
Hãy tạo đúng %d câu hỏi bằng %s, độ khó %s, loại câu hỏi: %s.

Quy tắc:
- MULTIPLE_CHOICE: 4 lựa chọn, đúng 1 lựa chọn có "is_correct": true, vị trí đáp án đúng ngẫu nhiên.
- TRUE_FALSE: đúng 2 lựa chọn "Đúng" và "Sai", 1 lựa chọn có "is_correct": true.
- SHORT_ANSWER: không có options, đáp án mẫu ngắn gọn đặt trong "correct_answer_text".
- Mỗi câu có "explanation" 1-2 câu giải thích vì sao đáp án đúng.

Trả về JSON hợp lệ đúng cấu trúc:
[
  {
    "question_text": "Câu hỏi?",
    "question_type": "MULTIPLE_CHOICE",
    "points": 1,
    "explanation": "Giải thích",
    "correct_answer_text": "",
    "options": [
      {"option_text": "Phương án A", "is_correct": false},
      {"option_text": "Phương án B", "is_correct": true}
    ]
  }
]

Chỉ trả về JSON, không thêm bất kỳ văn bản nào khác.

%s
`, count, lang, difficulty, qType, source)
}

// cleanJSON bỏ code fence ```json ... ``` mà LLM hay bọc quanh kết quả
func cleanJSON(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "`")
	clean = strings.TrimPrefix(clean, "json")
	return strings.TrimSpace(clean)
}

func rawJSON(raw string) datatypes.JSON {
	clean := cleanJSON(raw)
	if !json.Valid([]byte(clean)) {
		return nil
	}
	return datatypes.JSON(clean)
}

// parseGenerated trả câu hỏi hợp lệ và số câu bị loại
func parseGenerated(raw string, req GenerateRequest) ([]QuestionInput, int) {
	clean := cleanJSON(raw)

	var items []QuestionInput
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		// một số model bọc mảng trong {"questions": [...]}
		var wrapped struct {
			Questions []QuestionInput `json:"questions"`
		}
		if err2 := json.Unmarshal([]byte(clean), &wrapped); err2 != nil {
			log.Printf("[Generator] parse JSON lỗi: %v", err)
			return nil, 0
		}
		items = wrapped.Questions
	}

	accepted := make([]QuestionInput, 0, len(items))
	rejected := 0
	for i := range items {
		item := items[i]
		item.QuestionType = models.QuestionType(strings.ToUpper(strings.TrimSpace(string(item.QuestionType))))
		if item.Points <= 0 {
			item.Points = 1
		}
		if req.QuestionType != "" && item.QuestionType != req.QuestionType {
			rejected++
			continue
		}
		verr := &ValidationError{}
		ValidateQuestion(&item, "q", verr)
		if !verr.Empty() {
			rejected++
			continue
		}
		accepted = append(accepted, item)
	}
	return accepted, rejected
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
