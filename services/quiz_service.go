package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/vnkhanh/siquiz-backend/models"
	"gorm.io/gorm"
)

// Actor là người dùng đang thao tác (lấy từ JWT)
type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
}

func (a *Actor) IsAdmin() bool { return a != nil && a.Role == models.RoleAdmin }

// CanManage: chỉ người tạo hoặc admin được sửa quiz
func (a *Actor) CanManage(q *models.Quiz) bool {
	return a != nil && (a.Role == models.RoleAdmin || q.CreatedBy == a.ID)
}

type OptionInput struct {
	OptionText string `json:"option_text" binding:"required"`
	IsCorrect  bool   `json:"is_correct"`
}

type QuestionInput struct {
	QuestionText      string              `json:"question_text" binding:"required"`
	QuestionType      models.QuestionType `json:"question_type" binding:"required"`
	Points            int                 `json:"points" binding:"omitempty,min=1,max=100"`
	Explanation       string              `json:"explanation"`
	CorrectAnswerText string              `json:"correct_answer_text"`
	Options           []OptionInput       `json:"options" binding:"omitempty,dive"`
}

type QuizInput struct {
	Title            string            `json:"title" binding:"required,max=255"`
	Description      string            `json:"description"`
	Duration         int               `json:"duration" binding:"min=0,max=600"`
	Difficulty       models.Difficulty `json:"difficulty"`
	ShuffleQuestions bool              `json:"shuffle_questions"`
	CategoryID       *uuid.UUID        `json:"category_id"`
	Tags             []string          `json:"tags"`
	Questions        []QuestionInput   `json:"questions" binding:"omitempty,dive"`
}

// QuizPatch: field nil = giữ nguyên. Questions != nil thay toàn bộ bộ câu hỏi.
type QuizPatch struct {
	Title            *string            `json:"title" binding:"omitempty,max=255"`
	Description      *string            `json:"description"`
	Duration         *int               `json:"duration" binding:"omitempty,min=0,max=600"`
	Difficulty       *models.Difficulty `json:"difficulty"`
	ShuffleQuestions *bool              `json:"shuffle_questions"`
	CategoryID       *uuid.UUID         `json:"category_id"`
	ClearCategory    bool               `json:"clear_category"`
	Tags             *[]string          `json:"tags"`
	Questions        *[]QuestionInput   `json:"questions" binding:"omitempty"`
}

type QuizFilter struct {
	Page       int
	Limit      int
	Category   string // slug hoặc id
	Difficulty models.Difficulty
	Tag        string
	Search     string
	Sort       string // newest | oldest | title | popular
	Mine       bool
	Status     models.QuizStatus // chỉ áp dụng cho admin hoặc mine
}

type QuizService struct {
	db     *gorm.DB
	cache  *QuizCache
	events EventPublisher
}

func NewQuizService(db *gorm.DB, cache *QuizCache, events EventPublisher) *QuizService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &QuizService{db: db, cache: cache, events: events}
}

// ===== Validate =====

// ValidateQuestion kiểm tra ràng buộc theo loại câu hỏi và ghi lỗi vào verr với prefix field
func ValidateQuestion(in *QuestionInput, prefix string, verr *ValidationError) {
	if strings.TrimSpace(in.QuestionText) == "" {
		verr.Add(prefix+".question_text", "không được để trống")
	}
	if in.Points < 0 {
		verr.Add(prefix+".points", "điểm phải >= 1")
	}
	for i, o := range in.Options {
		if strings.TrimSpace(o.OptionText) == "" {
			verr.Add(fmt.Sprintf("%s.options[%d].option_text", prefix, i), "không được để trống")
		}
	}

	correct := 0
	for _, o := range in.Options {
		if o.IsCorrect {
			correct++
		}
	}

	switch in.QuestionType {
	case models.MultipleChoice:
		if len(in.Options) < 2 {
			verr.Add(prefix+".options", "câu trắc nghiệm cần ít nhất 2 lựa chọn")
		}
		if correct != 1 {
			verr.Add(prefix+".options", "câu trắc nghiệm phải có đúng 1 đáp án đúng")
		}
	case models.TrueFalse:
		if len(in.Options) != 2 {
			verr.Add(prefix+".options", "câu đúng/sai phải có đúng 2 lựa chọn")
		} else if correct != 1 {
			verr.Add(prefix+".options", "câu đúng/sai phải có đúng 1 đáp án đúng")
		}
	case models.ShortAnswer:
		if correct != 0 {
			verr.Add(prefix+".options", "câu tự luận ngắn không có lựa chọn đúng/sai")
		}
		if strings.TrimSpace(in.CorrectAnswerText) == "" && len(in.Options) != 1 {
			verr.Add(prefix+".correct_answer_text", "cần đáp án mẫu")
		}
	default:
		verr.Add(prefix+".question_type", "loại câu hỏi không hợp lệ")
	}
}

func validateQuizFields(title string, duration int, difficulty models.Difficulty, verr *ValidationError) {
	if strings.TrimSpace(title) == "" {
		verr.Add("title", "không được để trống")
	}
	if duration < 0 {
		verr.Add("duration", "thời gian làm bài không hợp lệ")
	}
	if difficulty != "" && !difficulty.Valid() {
		verr.Add("difficulty", "độ khó phải là EASY, MEDIUM hoặc HARD")
	}
}

func buildQuestion(in *QuestionInput, quizID uuid.UUID, sortOrder int, ai bool) models.Question {
	points := in.Points
	if points == 0 {
		points = 1
	}
	q := models.Question{
		QuizID:            quizID,
		QuestionText:      strings.TrimSpace(in.QuestionText),
		QuestionType:      in.QuestionType,
		Points:            points,
		Explanation:       strings.TrimSpace(in.Explanation),
		IsAIGenerated:     ai,
		SortOrder:         sortOrder,
		CorrectAnswerText: strings.TrimSpace(in.CorrectAnswerText),
	}
	for i, o := range in.Options {
		q.Options = append(q.Options, models.Option{
			OptionText: strings.TrimSpace(o.OptionText),
			IsCorrect:  o.IsCorrect,
			SortOrder:  i,
		})
	}
	return q
}

// ===== CRUD =====

func (s *QuizService) CreateQuiz(ctx context.Context, actor *Actor, in QuizInput) (*models.Quiz, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	verr := &ValidationError{}
	validateQuizFields(in.Title, in.Duration, in.Difficulty, verr)
	for i := range in.Questions {
		ValidateQuestion(&in.Questions[i], fmt.Sprintf("questions[%d]", i), verr)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	quiz := models.Quiz{
		Title:            strings.TrimSpace(in.Title),
		Slug:             slug.Make(in.Title),
		Description:      in.Description,
		Duration:         in.Duration,
		Difficulty:       in.Difficulty,
		Status:           models.QuizDraft,
		ShuffleQuestions: in.ShuffleQuestions,
		CreatedBy:        actor.ID,
	}
	if quiz.Difficulty == "" {
		quiz.Difficulty = models.DifficultyMedium
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.CategoryID != nil {
			if err := ensureCategory(tx, *in.CategoryID); err != nil {
				return err
			}
			quiz.CategoryID = in.CategoryID
		}
		tags, err := resolveTags(tx, in.Tags)
		if err != nil {
			return err
		}
		quiz.Tags = tags
		for i := range in.Questions {
			quiz.Questions = append(quiz.Questions, buildQuestion(&in.Questions[i], uuid.Nil, i, false))
		}
		return tx.Create(&quiz).Error
	})
	if err != nil {
		return nil, err
	}
	return s.loadFull(ctx, quiz.ID)
}

func ensureCategory(tx *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return NewValidationError("category_id", "danh mục không tồn tại")
	}
	return nil
}

// resolveTags tìm tag theo tên, tạo mới nếu chưa có
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	seen := map[string]bool{}
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		if len(name) > 50 {
			return nil, NewValidationError("tags", "tên tag tối đa 50 ký tự")
		}

		var tag models.Tag
		err := tx.Where("LOWER(name) = ?", key).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.Tag{Name: name, Slug: slug.Make(name)}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *QuizService) loadFull(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, created_at ASC") }).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Category").
		Preload("Tags").
		Preload("Creator").
		First(&quiz, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

// managed tải quiz và kiểm tra quyền sửa. Người không có quyền nhận ErrForbidden
// nếu quiz đang công khai, ngược lại ErrNotFound.
func (s *QuizService) managed(db *gorm.DB, actor *Actor, id uuid.UUID) (*models.Quiz, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	var quiz models.Quiz
	err := db.First(&quiz, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(&quiz) {
		if quiz.Status == models.QuizPublished {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return &quiz, nil
}

// GetQuiz: manage = true khi actor được xem đầy đủ đáp án
func (s *QuizService) GetQuiz(ctx context.Context, actor *Actor, id uuid.UUID) (*models.Quiz, bool, error) {
	quiz, err := s.loadFull(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if actor.CanManage(quiz) {
		return quiz, true, nil
	}
	if quiz.Status != models.QuizPublished {
		return nil, false, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return quiz, false, nil
}

func (s *QuizService) UpdateQuiz(ctx context.Context, actor *Actor, id uuid.UUID, patch QuizPatch) (*models.Quiz, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quiz, err := s.managed(tx, actor, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if patch.Title != nil {
			updates["title"] = strings.TrimSpace(*patch.Title)
			updates["slug"] = slug.Make(*patch.Title)
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Duration != nil {
			updates["duration"] = *patch.Duration
		}
		if patch.Difficulty != nil {
			updates["difficulty"] = *patch.Difficulty
		}
		if patch.ShuffleQuestions != nil {
			updates["shuffle_questions"] = *patch.ShuffleQuestions
		}

		verr := &ValidationError{}
		title, duration, difficulty := quiz.Title, quiz.Duration, quiz.Difficulty
		if patch.Title != nil {
			title = *patch.Title
		}
		if patch.Duration != nil {
			duration = *patch.Duration
		}
		if patch.Difficulty != nil {
			difficulty = *patch.Difficulty
		}
		validateQuizFields(title, duration, difficulty, verr)
		if patch.Questions != nil {
			for i := range *patch.Questions {
				ValidateQuestion(&(*patch.Questions)[i], fmt.Sprintf("questions[%d]", i), verr)
			}
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		switch {
		case patch.ClearCategory:
			updates["category_id"] = nil
		case patch.CategoryID != nil:
			if err := ensureCategory(tx, *patch.CategoryID); err != nil {
				return err
			}
			updates["category_id"] = *patch.CategoryID
		}

		if len(updates) > 0 {
			if err := tx.Model(quiz).Updates(updates).Error; err != nil {
				return err
			}
		}

		if patch.Tags != nil {
			tags, err := resolveTags(tx, *patch.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(quiz).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}

		if patch.Questions != nil {
			return s.replaceQuestions(tx, quiz, *patch.Questions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateQuiz(ctx, id)
	return s.loadFull(ctx, id)
}

// replaceQuestions thay toàn bộ câu hỏi. Không cho phép khi quiz đã có lượt làm
// vì Answer của các lượt đã chấm sẽ bị xóa theo.
func (s *QuizService) replaceQuestions(tx *gorm.DB, quiz *models.Quiz, inputs []QuestionInput) error {
	var attempts int64
	if err := tx.Model(&models.QuizAttempt{}).Where("quiz_id = ?", quiz.ID).Count(&attempts).Error; err != nil {
		return err
	}
	if attempts > 0 {
		return fmt.Errorf("quiz đã có %d lượt làm, hãy sửa từng câu hỏi: %w", attempts, ErrInvalidState)
	}
	if quiz.Status == models.QuizPublished && len(inputs) == 0 {
		return NewValidationError("questions", "quiz đã xuất bản phải có ít nhất 1 câu hỏi")
	}

	if err := deleteQuestionsOf(tx, "quiz_id = ?", quiz.ID); err != nil {
		return err
	}
	_, err := appendQuestions(tx, quiz.ID, inputs, false)
	return err
}

func deleteQuestionsOf(tx *gorm.DB, cond string, args ...interface{}) error {
	sub := tx.Model(&models.Question{}).Select("id").Where(cond, args...)
	if err := tx.Where("question_id IN (?)", sub).Delete(&models.Answer{}).Error; err != nil {
		return err
	}
	if err := tx.Where("question_id IN (?)", sub).Delete(&models.Option{}).Error; err != nil {
		return err
	}
	return tx.Where(cond, args...).Delete(&models.Question{}).Error
}

// appendQuestions thêm câu hỏi vào cuối quiz (sort_order tiếp nối)
func appendQuestions(tx *gorm.DB, quizID uuid.UUID, inputs []QuestionInput, ai bool) ([]models.Question, error) {
	if len(inputs) == 0 {
		return []models.Question{}, nil
	}
	var maxOrder struct{ Max *int }
	if err := tx.Model(&models.Question{}).Select("MAX(sort_order) AS max").Where("quiz_id = ?", quizID).Scan(&maxOrder).Error; err != nil {
		return nil, err
	}
	next := 0
	if maxOrder.Max != nil {
		next = *maxOrder.Max + 1
	}

	questions := make([]models.Question, 0, len(inputs))
	for i := range inputs {
		questions = append(questions, buildQuestion(&inputs[i], quizID, next+i, ai))
	}
	if err := tx.Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// DeleteQuiz xóa quiz cùng toàn bộ cây sở hữu trong một transaction
func (s *QuizService) DeleteQuiz(ctx context.Context, actor *Actor, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quiz, err := s.managed(tx, actor, id)
		if err != nil {
			return err
		}
		attempts := tx.Model(&models.QuizAttempt{}).Select("id").Where("quiz_id = ?", quiz.ID)
		if err := tx.Where("attempt_id IN (?)", attempts).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", quiz.ID).Delete(&models.QuizAttempt{}).Error; err != nil {
			return err
		}
		if err := deleteQuestionsOf(tx, "quiz_id = ?", quiz.ID); err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", quiz.ID).Delete(&models.AIGenerationLog{}).Error; err != nil {
			return err
		}
		if err := tx.Model(quiz).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(quiz).Error
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateQuiz(ctx, id)
	return nil
}

// SetStatus: DRAFT -> PUBLISHED -> ARCHIVED, và quay lại DRAFT từ PUBLISHED/ARCHIVED
func (s *QuizService) SetStatus(ctx context.Context, actor *Actor, id uuid.UUID, status models.QuizStatus) (*models.Quiz, error) {
	if !status.Valid() {
		return nil, NewValidationError("status", "trạng thái phải là DRAFT, PUBLISHED hoặc ARCHIVED")
	}
	var quiz *models.Quiz
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		quiz, err = s.managed(tx, actor, id)
		if err != nil {
			return err
		}
		if !statusTransitionAllowed(quiz.Status, status) {
			return fmt.Errorf("không thể chuyển %s -> %s: %w", quiz.Status, status, ErrInvalidState)
		}
		if status == models.QuizPublished {
			var count int64
			if err := tx.Model(&models.Question{}).Where("quiz_id = ?", quiz.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return NewValidationError("questions", "quiz cần ít nhất 1 câu hỏi để xuất bản")
			}
		}
		return tx.Model(quiz).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateQuiz(ctx, id)
	if status == models.QuizPublished {
		publishAsync(s.events, EventQuizPublished, map[string]interface{}{
			"quiz_id":    quiz.ID,
			"title":      quiz.Title,
			"created_by": quiz.CreatedBy,
		})
	}
	return s.loadFull(ctx, id)
}

func statusTransitionAllowed(from, to models.QuizStatus) bool {
	switch from {
	case models.QuizDraft:
		return to == models.QuizPublished
	case models.QuizPublished:
		return to == models.QuizArchived || to == models.QuizDraft
	case models.QuizArchived:
		return to == models.QuizDraft || to == models.QuizPublished
	}
	return false
}

func (s *QuizService) SetCover(ctx context.Context, actor *Actor, id uuid.UUID, url string) (string, error) {
	db := s.db.WithContext(ctx)
	quiz, err := s.managed(db, actor, id)
	if err != nil {
		return "", err
	}
	old := quiz.CoverURL
	if err := db.Model(quiz).Update("cover_url", url).Error; err != nil {
		return "", err
	}
	s.cache.InvalidateQuiz(ctx, id)
	return old, nil
}

// ===== Câu hỏi =====

func (s *QuizService) AddQuestions(ctx context.Context, actor *Actor, quizID uuid.UUID, inputs []QuestionInput) ([]models.Question, error) {
	verr := &ValidationError{}
	for i := range inputs {
		ValidateQuestion(&inputs[i], fmt.Sprintf("questions[%d]", i), verr)
	}
	if len(inputs) == 0 {
		verr.Add("questions", "cần ít nhất 1 câu hỏi")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var created []models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.managed(tx, actor, quizID); err != nil {
			return err
		}
		var err error
		created, err = appendQuestions(tx, quizID, inputs, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateQuiz(ctx, quizID)
	return created, nil
}

func (s *QuizService) questionWithQuiz(tx *gorm.DB, actor *Actor, questionID uuid.UUID) (*models.Question, *models.Quiz, error) {
	var q models.Question
	err := tx.First(&q, "id = ?", questionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	quiz, err := s.managed(tx, actor, q.QuizID)
	if err != nil {
		return nil, nil, err
	}
	return &q, quiz, nil
}

// finishedAttempts đếm lượt đã chốt (COMPLETED/ABANDONED) của quiz. Answer của các lượt này là lịch sử, không được sửa.
func finishedAttempts(tx *gorm.DB, quizID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.QuizAttempt{}).
		Where("quiz_id = ? AND status <> ?", quizID, models.AttemptInProgress).
		Count(&n).Error
	return n, err
}

// gradingChanged: bản sửa có làm thay đổi cách chấm hay nội dung đáp án đã hiển thị trong kết quả không
func gradingChanged(current *models.Question, next *models.Question) bool {
	if current.Points != next.Points || current.QuestionType != next.QuestionType ||
		strings.TrimSpace(current.CorrectAnswerText) != next.CorrectAnswerText {
		return true
	}
	have, want := sortOptions(current.Options), next.Options
	if len(have) != len(want) {
		return true
	}
	for i := range have {
		if strings.TrimSpace(have[i].OptionText) != want[i].OptionText || have[i].IsCorrect != want[i].IsCorrect {
			return true
		}
	}
	return false
}

// UpdateQuestion thay nội dung và toàn bộ lựa chọn của một câu hỏi.
// Khi quiz đã có lượt chốt điểm chỉ được sửa câu chữ và giải thích.
func (s *QuizService) UpdateQuestion(ctx context.Context, actor *Actor, questionID uuid.UUID, in QuestionInput) (*models.Question, error) {
	verr := &ValidationError{}
	ValidateQuestion(&in, "question", verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var out models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, _, err := s.questionWithQuiz(tx, actor, questionID)
		if err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", q.ID).Find(&q.Options).Error; err != nil {
			return err
		}
		finished, err := finishedAttempts(tx, q.QuizID)
		if err != nil {
			return err
		}
		built := buildQuestion(&in, q.QuizID, q.SortOrder, q.IsAIGenerated)

		if finished > 0 {
			if gradingChanged(q, &built) {
				return fmt.Errorf("quiz đã có %d lượt chốt điểm, không thể đổi điểm hay đáp án: %w", finished, ErrInvalidState)
			}
			if err := tx.Model(q).Updates(map[string]interface{}{
				"question_text": built.QuestionText,
				"explanation":   built.Explanation,
			}).Error; err != nil {
				return err
			}
			return tx.Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).First(&out, "id = ?", q.ID).Error
		}

		if err := tx.Model(q).Updates(map[string]interface{}{
			"question_text":       built.QuestionText,
			"question_type":       built.QuestionType,
			"points":              built.Points,
			"explanation":         built.Explanation,
			"correct_answer_text": built.CorrectAnswerText,
		}).Error; err != nil {
			return err
		}
		// lựa chọn đã lưu của lượt đang làm trỏ tới option cũ, bỏ đi
		active := tx.Model(&models.QuizAttempt{}).Select("id").Where("status = ?", models.AttemptInProgress)
		if err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND attempt_id IN (?)", q.ID, active).
			Update("selected_option_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", q.ID).Delete(&models.Option{}).Error; err != nil {
			return err
		}
		for i := range built.Options {
			built.Options[i].QuestionID = q.ID
		}
		if len(built.Options) > 0 {
			if err := tx.Create(&built.Options).Error; err != nil {
				return err
			}
		}
		return tx.Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).First(&out, "id = ?", q.ID).Error
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateQuiz(ctx, out.QuizID)
	return &out, nil
}

// DeleteQuestion chỉ cho phép khi chưa có lượt nào chốt điểm, Answer của lượt đang làm bị xóa theo
func (s *QuizService) DeleteQuestion(ctx context.Context, actor *Actor, questionID uuid.UUID) error {
	var quizID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, quiz, err := s.questionWithQuiz(tx, actor, questionID)
		if err != nil {
			return err
		}
		quizID = quiz.ID
		finished, err := finishedAttempts(tx, quiz.ID)
		if err != nil {
			return err
		}
		if finished > 0 {
			return fmt.Errorf("quiz đã có %d lượt chốt điểm, không thể xóa câu hỏi: %w", finished, ErrInvalidState)
		}
		if quiz.Status == models.QuizPublished {
			var count int64
			if err := tx.Model(&models.Question{}).Where("quiz_id = ?", quiz.ID).Count(&count).Error; err != nil {
				return err
			}
			if count <= 1 {
				return NewValidationError("question", "quiz đã xuất bản phải còn ít nhất 1 câu hỏi")
			}
		}
		return deleteQuestionsOf(tx, "id = ?", q.ID)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateQuiz(ctx, quizID)
	return nil
}

// ===== Danh sách =====

func (s *QuizService) ListQuizzes(ctx context.Context, actor *Actor, f QuizFilter) ([]models.QuizListItem, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Quiz{})

	switch {
	case f.Mine && actor != nil:
		q = q.Where("quizzes.created_by = ?", actor.ID)
		if f.Status != "" {
			q = q.Where("quizzes.status = ?", f.Status)
		}
	case actor.IsAdmin() && f.Status != "":
		q = q.Where("quizzes.status = ?", f.Status)
	default:
		q = q.Where("quizzes.status = ?", models.QuizPublished)
	}

	if f.Category != "" {
		if id, err := uuid.Parse(f.Category); err == nil {
			q = q.Where("quizzes.category_id = ?", id)
		} else {
			q = q.Where("quizzes.category_id IN (SELECT id FROM categories WHERE slug = ?)", f.Category)
		}
	}
	if f.Difficulty != "" {
		q = q.Where("quizzes.difficulty = ?", f.Difficulty)
	}
	if f.Tag != "" {
		q = q.Where("quizzes.id IN (SELECT qt.quiz_id FROM quiz_tags qt JOIN tags t ON t.id = qt.tag_id WHERE t.slug = ? OR LOWER(t.name) = ?)",
			f.Tag, strings.ToLower(f.Tag))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(quizzes.title) LIKE ? OR LOWER(quizzes.description) LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "quizzes.created_at DESC"
	switch f.Sort {
	case "oldest":
		order = "quizzes.created_at ASC"
	case "title":
		order = "LOWER(quizzes.title) ASC"
	case "popular":
		order = "(SELECT COUNT(*) FROM quiz_attempts qa WHERE qa.quiz_id = quizzes.id) DESC, quizzes.created_at DESC"
	}

	var quizzes []models.Quiz
	err := q.Preload("Category").
		Preload("Tags").
		Preload("Creator", func(db *gorm.DB) *gorm.DB { return db.Select("id", "full_name") }).
		Order(order).
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&quizzes).Error
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uuid.UUID, len(quizzes))
	for i, quiz := range quizzes {
		ids[i] = quiz.ID
	}
	questionCounts, err := countByQuiz(s.db.WithContext(ctx), &models.Question{}, ids)
	if err != nil {
		return nil, 0, err
	}
	attemptCounts, err := countByQuiz(s.db.WithContext(ctx), &models.QuizAttempt{}, ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]models.QuizListItem, 0, len(quizzes))
	for _, quiz := range quizzes {
		item := models.QuizListItem{
			ID:            quiz.ID,
			Title:         quiz.Title,
			Slug:          quiz.Slug,
			Description:   quiz.Description,
			Duration:      quiz.Duration,
			Difficulty:    quiz.Difficulty,
			Status:        quiz.Status,
			CoverURL:      quiz.CoverURL,
			CategoryID:    quiz.CategoryID,
			Tags:          make([]string, 0, len(quiz.Tags)),
			QuestionCount: questionCounts[quiz.ID],
			AttemptCount:  attemptCounts[quiz.ID],
			CreatedBy:     quiz.CreatedBy,
			CreatorName:   quiz.Creator.FullName,
			CreatedAt:     quiz.CreatedAt,
		}
		if quiz.Category != nil {
			item.CategoryName = quiz.Category.Name
		}
		for _, t := range quiz.Tags {
			item.Tags = append(item.Tags, t.Name)
		}
		items = append(items, item)
	}
	return items, total, nil
}

func countByQuiz(db *gorm.DB, model interface{}, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		QuizID uuid.UUID
		Total  int64
	}
	err := db.Model(model).
		Select("quiz_id, COUNT(*) AS total").
		Where("quiz_id IN ?", ids).
		Group("quiz_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.QuizID] = r.Total
	}
	return out, nil
}

// ===== Thống kê =====

func (s *QuizService) Stats(ctx context.Context, actor *Actor, quizID uuid.UUID) (*models.QuizStatsDTO, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.managed(db, actor, quizID); err != nil {
		return nil, err
	}

	out := &models.QuizStatsDTO{QuizID: quizID}
	if err := db.Model(&models.QuizAttempt{}).Where("quiz_id = ?", quizID).Count(&out.Attempts).Error; err != nil {
		return nil, err
	}

	var completed []models.QuizAttempt
	err := db.Select("score", "timed_out", "started_at", "completed_at").
		Where("quiz_id = ? AND status = ?", quizID, models.AttemptCompleted).
		Find(&completed).Error
	if err != nil {
		return nil, err
	}

	out.Completed = int64(len(completed))
	if out.Completed == 0 {
		return out, nil
	}
	var sumScore, sumDur float64
	var passed int64
	for _, a := range completed {
		sumScore += a.Score
		if a.Score > out.BestScore {
			out.BestScore = a.Score
		}
		if a.Score >= 50 {
			passed++
		}
		if a.TimedOut {
			out.TimedOutCount++
		}
		if a.CompletedAt != nil {
			sumDur += a.CompletedAt.Sub(a.StartedAt).Seconds()
		}
	}
	n := float64(out.Completed)
	out.AverageScore = round2(sumScore / n)
	out.PassRate = round2(100 * float64(passed) / n)
	out.AverageDuration = round2(sumDur / n)
	return out, nil
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
