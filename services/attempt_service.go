package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultSubmitGrace = 30 * time.Second

// AttemptNotifier nhận thông báo khi một lượt làm được chốt (nộp bài hoặc hết giờ)
type AttemptNotifier interface {
	AttemptFinalized(attempt *models.QuizAttempt, quizTitle string)
}

type AttemptService struct {
	db       *gorm.DB
	scorer   *Scorer
	cache    *QuizCache
	events   EventPublisher
	notifier AttemptNotifier
	grace    time.Duration
	now      func() time.Time
}

type AttemptOption func(*AttemptService)

func WithGrace(d time.Duration) AttemptOption {
	return func(s *AttemptService) { s.grace = d }
}

func WithClock(now func() time.Time) AttemptOption {
	return func(s *AttemptService) { s.now = now }
}

func WithNotifier(n AttemptNotifier) AttemptOption {
	return func(s *AttemptService) { s.notifier = n }
}

func WithEvents(p EventPublisher) AttemptOption {
	return func(s *AttemptService) { s.events = p }
}

func WithCache(c *QuizCache) AttemptOption {
	return func(s *AttemptService) { s.cache = c }
}

func NewAttemptService(db *gorm.DB, opts ...AttemptOption) *AttemptService {
	s := &AttemptService{
		db:     db,
		scorer: NewScorer(),
		grace:  DefaultSubmitGrace,
		now:    func() time.Time { return time.Now().UTC() },
		events: NoopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AttemptService) Scorer() *Scorer { return s.scorer }

// ===== Quiz-for-taking =====

// TakeQuiz trả quiz đã bỏ đáp án. Quiz không tồn tại hoặc chưa PUBLISHED => ErrNotFound.
func (s *AttemptService) TakeQuiz(ctx context.Context, quizID uuid.UUID) (*models.TakeQuizDTO, error) {
	return s.projection(ctx, quizID, true)
}

func (s *AttemptService) projection(ctx context.Context, quizID uuid.UUID, requirePublished bool) (*models.TakeQuizDTO, error) {
	// cache chỉ chứa quiz đang PUBLISHED, bị xóa khi đổi trạng thái
	if dto, ok := s.cache.GetTake(ctx, quizID); ok {
		return dto, nil
	}

	var quiz models.Quiz
	err := s.db.WithContext(ctx).
		Preload("Questions.Options").
		Preload("Category").
		Preload("Tags").
		First(&quiz, "id = ?", quizID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quiz %s: %w", quizID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if requirePublished && quiz.Status != models.QuizPublished {
		return nil, fmt.Errorf("quiz %s chưa xuất bản: %w", quizID, ErrNotFound)
	}

	dto := ProjectForTaking(&quiz)
	if quiz.Status == models.QuizPublished {
		s.cache.SetTake(ctx, dto)
	}
	return dto, nil
}

// ===== Start =====

// StartAttempt tạo lượt làm IN_PROGRESS. Nếu user đã có lượt đang làm cho quiz này
// thì trả lại lượt đó (created = false).
func (s *AttemptService) StartAttempt(ctx context.Context, userID, quizID uuid.UUID) (*models.QuizAttempt, bool, error) {
	db := s.db.WithContext(ctx)

	var quiz models.Quiz
	err := db.Preload("Questions").First(&quiz, "id = ? AND status = ?", quizID, models.QuizPublished).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("quiz %s: %w", quizID, ErrNotFound)
	}
	if err != nil {
		return nil, false, err
	}

	active, err := s.findActive(db, userID, quizID)
	if err != nil {
		return nil, false, err
	}
	if active != nil {
		if !active.Expired(s.now(), s.grace) {
			return active, false, nil
		}
		// lượt cũ đã quá hạn: chốt điểm rồi cho bắt đầu lượt mới
		if _, err := s.expireOne(ctx, active.ID); err != nil && !errors.Is(err, ErrInvalidState) {
			return nil, false, err
		}
	}

	now := s.now()
	attempt := models.QuizAttempt{
		UserID:    userID,
		QuizID:    quizID,
		Status:    models.AttemptInProgress,
		StartedAt: now,
	}
	if quiz.Duration > 0 {
		deadline := now.Add(time.Duration(quiz.Duration) * time.Minute)
		attempt.DeadlineAt = &deadline
	}
	if quiz.ShuffleQuestions {
		if err := attempt.SetOrder(shuffledIDs(quiz.Questions)); err != nil {
			return nil, false, err
		}
	}

	if err := db.Create(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// request song song đã tạo trước, dùng lại lượt của nó
			winner, ferr := s.findActive(db, userID, quizID)
			if ferr != nil {
				return nil, false, ferr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	attemptsStarted.Inc()
	publishAsync(s.events, EventAttemptStarted, map[string]interface{}{
		"attempt_id":  attempt.ID,
		"user_id":     userID,
		"quiz_id":     quizID,
		"started_at":  attempt.StartedAt,
		"deadline_at": attempt.DeadlineAt,
	})
	return &attempt, true, nil
}

func (s *AttemptService) findActive(db *gorm.DB, userID, quizID uuid.UUID) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := db.Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, models.AttemptInProgress).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func shuffledIDs(questions []models.Question) []uuid.UUID {
	sorted := SortQuestions(questions)
	ids := make([]uuid.UUID, len(sorted))
	for i, q := range sorted {
		ids[i] = q.ID
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

// ===== Lưu đáp án từng câu =====

// SaveAnswer upsert câu trả lời khi lượt làm còn IN_PROGRESS và chưa tới deadline.
// Giá trị rỗng xóa câu trả lời đã lưu.
func (s *AttemptService) SaveAnswer(ctx context.Context, userID, attemptID, questionID uuid.UUID, value AnswerValue) error {
	return s.SaveAnswers(ctx, userID, attemptID, map[uuid.UUID]AnswerValue{questionID: value})
}

// SaveAnswers lưu nhiều câu trong một transaction: một câu lỗi thì không câu nào được ghi
func (s *AttemptService) SaveAnswers(ctx context.Context, userID, attemptID uuid.UUID, values map[uuid.UUID]AnswerValue) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := s.ownedAttempt(tx, userID, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != models.AttemptInProgress {
			return fmt.Errorf("attempt %s đang ở trạng thái %s: %w", attemptID, attempt.Status, ErrInvalidState)
		}
		if attempt.DeadlineAt != nil && s.now().After(*attempt.DeadlineAt) {
			return fmt.Errorf("attempt %s đã hết giờ: %w", attemptID, ErrInvalidState)
		}

		ids := make([]uuid.UUID, 0, len(values))
		for id := range values {
			ids = append(ids, id)
		}
		var questions []models.Question
		if len(ids) > 0 {
			if err := tx.Where("quiz_id = ? AND id IN ?", attempt.QuizID, ids).Find(&questions).Error; err != nil {
				return err
			}
		}
		types := make(map[uuid.UUID]models.QuestionType, len(questions))
		for _, q := range questions {
			types[q.ID] = q.QuestionType
		}
		verr := &ValidationError{}
		for _, id := range ids {
			if _, ok := types[id]; !ok {
				field := "question_id"
				if len(ids) > 1 {
					field = "answers." + id.String()
				}
				verr.Add(field, "câu hỏi không thuộc quiz này")
			}
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		for _, id := range ids {
			resolved := values[id].Resolve(types[id])
			if resolved.Empty() {
				if err := tx.Where("attempt_id = ? AND question_id = ?", attemptID, id).Delete(&models.Answer{}).Error; err != nil {
					return err
				}
				continue
			}
			ans := answerRow(attemptID, id, resolved)
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"selected_option_id", "short_answer_text", "answered_at"}),
			}).Create(&ans).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func answerRow(attemptID, questionID uuid.UUID, a SubmittedAnswer) models.Answer {
	row := models.Answer{AttemptID: attemptID, QuestionID: questionID, SelectedOptionID: a.OptionID}
	if a.OptionID == nil && a.Text != "" {
		text := a.Text
		row.ShortAnswerText = &text
	}
	return row
}

// ===== Nộp bài =====

// SubmitAttempt chấm toàn bộ câu hỏi và chốt lượt làm trong một transaction.
// Nộp sau deadline + grace: bỏ payload, chỉ chấm các câu đã lưu trước đó (timed_out = true).
func (s *AttemptService) SubmitAttempt(ctx context.Context, userID, attemptID uuid.UUID, payload map[string]AnswerValue) (*models.AttemptResultDTO, error) {
	parsed := make(map[uuid.UUID]AnswerValue, len(payload))
	verr := &ValidationError{}
	for key, v := range payload {
		id, err := uuid.Parse(key)
		if err != nil {
			verr.Add("answers."+key, "question id không hợp lệ")
			continue
		}
		parsed[id] = v
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	started := time.Now()
	var (
		attempt *models.QuizAttempt
		quiz    models.Quiz
		answers []models.Answer
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = s.ownedAttempt(tx, userID, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != models.AttemptInProgress {
			return fmt.Errorf("attempt %s đang ở trạng thái %s: %w", attemptID, attempt.Status, ErrInvalidState)
		}
		if err := tx.Preload("Questions.Options").First(&quiz, "id = ?", attempt.QuizID).Error; err != nil {
			return err
		}

		byID := make(map[uuid.UUID]*models.Question, len(quiz.Questions))
		for i := range quiz.Questions {
			byID[quiz.Questions[i].ID] = &quiz.Questions[i]
		}
		// id câu hỏi không thuộc quiz (ví dụ câu đã bị xóa khi đang làm) bị bỏ qua
		for id := range parsed {
			if _, ok := byID[id]; !ok {
				log.Printf("[Attempt] %s: bỏ qua câu trả lời cho câu hỏi lạ %s", attemptID, id)
				delete(parsed, id)
			}
		}

		submitted, err := savedAnswers(tx, attempt.ID)
		if err != nil {
			return err
		}
		timedOut := attempt.Expired(s.now(), s.grace)
		if !timedOut {
			for id, v := range parsed {
				submitted[id] = v.Resolve(byID[id].QuestionType)
			}
		} else {
			log.Printf("[Attempt] %s nộp sau hạn, bỏ qua payload và chấm đáp án đã lưu", attemptID)
		}

		answers, err = s.finalize(tx, attempt, &quiz, submitted, timedOut)
		return err
	})
	if err != nil {
		return nil, err
	}
	gradingDuration.Observe(time.Since(started).Seconds())
	s.afterFinalize(attempt, &quiz)
	return BuildResult(attempt, &quiz, answers), nil
}

func savedAnswers(tx *gorm.DB, attemptID uuid.UUID) (map[uuid.UUID]SubmittedAnswer, error) {
	var rows []models.Answer
	if err := tx.Where("attempt_id = ?", attemptID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]SubmittedAnswer, len(rows))
	for _, r := range rows {
		a := SubmittedAnswer{OptionID: r.SelectedOptionID}
		if r.ShortAnswerText != nil {
			a.Text = *r.ShortAnswerText
		}
		out[r.QuestionID] = a
	}
	return out, nil
}

// finalize chấm, chuyển IN_PROGRESS -> COMPLETED có điều kiện và ghi một Answer cho mỗi câu.
// Phải chạy trong transaction.
func (s *AttemptService) finalize(tx *gorm.DB, attempt *models.QuizAttempt, quiz *models.Quiz, submitted map[uuid.UUID]SubmittedAnswer, timedOut bool) ([]models.Answer, error) {
	questions := orderedQuestions(quiz.Questions, attempt.Order())
	grading := s.scorer.Grade(questions, submitted)
	completedAt := s.now()

	res := tx.Model(&models.QuizAttempt{}).
		Where("id = ? AND status = ?", attempt.ID, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":        models.AttemptCompleted,
			"score":         grading.Score,
			"earned_points": grading.EarnedPoints,
			"total_points":  grading.TotalPoints,
			"correct_count": grading.CorrectCount,
			"timed_out":     timedOut,
			"completed_at":  completedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("attempt %s đã được chốt: %w", attempt.ID, ErrInvalidState)
	}

	if err := tx.Where("attempt_id = ?", attempt.ID).Delete(&models.Answer{}).Error; err != nil {
		return nil, err
	}
	rows := make([]models.Answer, 0, len(grading.Items))
	for _, item := range grading.Items {
		row := answerRow(attempt.ID, item.Question.ID, item.Answer)
		row.IsCorrect = item.IsCorrect
		row.PointsEarned = item.PointsEarned
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return nil, err
		}
	}

	attempt.Status = models.AttemptCompleted
	attempt.Score = grading.Score
	attempt.EarnedPoints = grading.EarnedPoints
	attempt.TotalPoints = grading.TotalPoints
	attempt.CorrectCount = grading.CorrectCount
	attempt.TimedOut = timedOut
	attempt.CompletedAt = &completedAt
	return rows, nil
}

func (s *AttemptService) afterFinalize(attempt *models.QuizAttempt, quiz *models.Quiz) {
	attemptsCompleted.WithLabelValues(boolLabel(attempt.TimedOut)).Inc()
	publishAsync(s.events, EventAttemptCompleted, map[string]interface{}{
		"attempt_id":   attempt.ID,
		"user_id":      attempt.UserID,
		"quiz_id":      attempt.QuizID,
		"score":        attempt.Score,
		"timed_out":    attempt.TimedOut,
		"completed_at": attempt.CompletedAt,
	})
	if s.notifier != nil {
		s.notifier.AttemptFinalized(attempt, quiz.Title)
	}
}

// ===== Hết giờ =====

// ExpireOverdue chốt mọi lượt IN_PROGRESS đã quá deadline + grace, chỉ chấm đáp án đã lưu.
func (s *AttemptService) ExpireOverdue(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.grace)
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.QuizAttempt{}).
		Where("status = ? AND deadline_at IS NOT NULL AND deadline_at < ?", models.AttemptInProgress, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if _, err := s.expireOne(ctx, id); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue // đã được nộp song song
			}
			log.Printf("[Attempt] chốt lượt hết giờ %s lỗi: %v", id, err)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *AttemptService) expireOne(ctx context.Context, attemptID uuid.UUID) (*models.AttemptResultDTO, error) {
	var (
		attempt models.QuizAttempt
		quiz    models.Quiz
		answers []models.Answer
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&attempt, "id = ?", attemptID).Error; err != nil {
			return err
		}
		if attempt.Status != models.AttemptInProgress {
			return ErrInvalidState
		}
		if err := tx.Preload("Questions.Options").First(&quiz, "id = ?", attempt.QuizID).Error; err != nil {
			return err
		}
		submitted, err := savedAnswers(tx, attempt.ID)
		if err != nil {
			return err
		}
		answers, err = s.finalize(tx, &attempt, &quiz, submitted, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterFinalize(&attempt, &quiz)
	return BuildResult(&attempt, &quiz, answers), nil
}

// ===== Bỏ dở =====

func (s *AttemptService) AbandonAttempt(ctx context.Context, userID, attemptID uuid.UUID) error {
	db := s.db.WithContext(ctx)
	if _, err := s.ownedAttempt(db, userID, attemptID); err != nil {
		return err
	}
	res := db.Model(&models.QuizAttempt{}).
		Where("id = ? AND status = ?", attemptID, models.AttemptInProgress).
		Update("status", models.AttemptAbandoned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("attempt %s không còn đang làm: %w", attemptID, ErrInvalidState)
	}
	return nil
}

// ===== Đọc =====

// AttemptView: đúng một trong hai trường được set tùy trạng thái lượt làm
type AttemptView struct {
	Progress *models.AttemptProgressDTO
	Result   *models.AttemptResultDTO
}

// GetAttempt trả tiến độ (để làm tiếp) hoặc kết quả. Lượt đang làm nhưng đã quá hạn sẽ được chốt ngay.
func (s *AttemptService) GetAttempt(ctx context.Context, userID, attemptID uuid.UUID) (*AttemptView, error) {
	db := s.db.WithContext(ctx)
	attempt, err := s.ownedAttempt(db, userID, attemptID)
	if err != nil {
		return nil, err
	}

	switch attempt.Status {
	case models.AttemptCompleted:
		result, err := s.loadResult(db, attempt)
		if err != nil {
			return nil, err
		}
		return &AttemptView{Result: result}, nil
	case models.AttemptInProgress:
		if attempt.Expired(s.now(), s.grace) {
			result, err := s.expireOne(ctx, attempt.ID)
			if errors.Is(err, ErrInvalidState) {
				return s.GetAttempt(ctx, userID, attemptID)
			}
			if err != nil {
				return nil, err
			}
			return &AttemptView{Result: result}, nil
		}
	}

	progress := &models.AttemptProgressDTO{
		AttemptID:  attempt.ID,
		Status:     attempt.Status,
		StartedAt:  attempt.StartedAt,
		DeadlineAt: attempt.DeadlineAt,
		Answers:    map[uuid.UUID]models.SavedAnswer{},
	}
	if attempt.Status != models.AttemptInProgress {
		return &AttemptView{Progress: progress}, nil
	}

	dto, err := s.projection(ctx, attempt.QuizID, false)
	if err != nil {
		return nil, err
	}
	progress.Quiz = ApplyOrder(dto, attempt.Order())

	var rows []models.Answer
	if err := db.Where("attempt_id = ?", attempt.ID).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		progress.Answers[r.QuestionID] = models.SavedAnswer{SelectedOptionID: r.SelectedOptionID, Text: r.ShortAnswerText}
	}
	return &AttemptView{Progress: progress}, nil
}

func (s *AttemptService) loadResult(db *gorm.DB, attempt *models.QuizAttempt) (*models.AttemptResultDTO, error) {
	var quiz models.Quiz
	if err := db.Preload("Questions.Options").First(&quiz, "id = ?", attempt.QuizID).Error; err != nil {
		return nil, err
	}
	var answers []models.Answer
	if err := db.Where("attempt_id = ?", attempt.ID).Find(&answers).Error; err != nil {
		return nil, err
	}
	// finalize ghi một Answer cho mỗi câu đã chấm; câu thêm sau đó không thuộc kết quả này
	graded := make(map[uuid.UUID]bool, len(answers))
	for _, a := range answers {
		graded[a.QuestionID] = true
	}
	kept := quiz.Questions[:0]
	for _, q := range quiz.Questions {
		if graded[q.ID] {
			kept = append(kept, q)
		}
	}
	quiz.Questions = kept
	return BuildResult(attempt, &quiz, answers), nil
}

// ListUserAttempts: lịch sử làm bài, mới nhất trước. quizID = nil để lấy tất cả.
func (s *AttemptService) ListUserAttempts(ctx context.Context, userID uuid.UUID, quizID *uuid.UUID, page, limit int) ([]models.AttemptSummaryDTO, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.QuizAttempt{}).Where("user_id = ?", userID)
	if quizID != nil {
		q = q.Where("quiz_id = ?", *quizID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []models.QuizAttempt
	err := q.Preload("Quiz", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Order("started_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]models.AttemptSummaryDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, models.AttemptSummaryDTO{
			ID:          a.ID,
			QuizID:      a.QuizID,
			QuizTitle:   a.Quiz.Title,
			Status:      a.Status,
			Score:       a.Score,
			TimedOut:    a.TimedOut,
			StartedAt:   a.StartedAt,
			CompletedAt: a.CompletedAt,
		})
	}
	return out, total, nil
}

// ownedAttempt: lượt làm của người khác được coi như không tồn tại
func (s *AttemptService) ownedAttempt(db *gorm.DB, userID, attemptID uuid.UUID) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := db.First(&attempt, "id = ? AND user_id = ?", attemptID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
