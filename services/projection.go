package services

import (
	"sort"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
)

// ProjectForTaking bỏ mọi thông tin lộ đáp án (is_correct, explanation, đáp án mẫu).
// SHORT_ANSWER không trả option vì option duy nhất chính là đáp án mẫu.
func ProjectForTaking(quiz *models.Quiz) *models.TakeQuizDTO {
	out := &models.TakeQuizDTO{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Duration:    quiz.Duration,
		Difficulty:  quiz.Difficulty,
		CoverURL:    quiz.CoverURL,
		Tags:        make([]string, 0, len(quiz.Tags)),
		Questions:   make([]models.TakeQuestionDTO, 0, len(quiz.Questions)),
	}
	if quiz.Category != nil {
		out.Category = quiz.Category.Name
	}
	for _, t := range quiz.Tags {
		out.Tags = append(out.Tags, t.Name)
	}

	for _, q := range SortQuestions(quiz.Questions) {
		tq := models.TakeQuestionDTO{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Points:       q.Points,
			Options:      []models.TakeOptionDTO{},
		}
		if q.QuestionType != models.ShortAnswer {
			for _, o := range sortOptions(q.Options) {
				tq.Options = append(tq.Options, models.TakeOptionDTO{ID: o.ID, OptionText: o.OptionText})
			}
		}
		out.TotalPoints += q.Points
		out.Questions = append(out.Questions, tq)
	}
	out.QuestionCount = len(out.Questions)
	return out
}

// ApplyOrder sắp lại câu hỏi của projection theo thứ tự lưu trong attempt.
// Câu hỏi không có trong order (thêm sau khi bắt đầu) được đẩy xuống cuối.
func ApplyOrder(dto *models.TakeQuizDTO, order []uuid.UUID) *models.TakeQuizDTO {
	if len(order) == 0 {
		return dto
	}
	pos := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	cp := *dto
	cp.Questions = append([]models.TakeQuestionDTO(nil), dto.Questions...)
	sort.SliceStable(cp.Questions, func(i, j int) bool {
		pi, oki := pos[cp.Questions[i].ID]
		pj, okj := pos[cp.Questions[j].ID]
		if oki != okj {
			return oki
		}
		return pi < pj
	})
	return &cp
}

// SortQuestions theo sort_order rồi created_at, trả về bản sao
func SortQuestions(questions []models.Question) []models.Question {
	out := append([]models.Question(nil), questions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func sortOptions(options []models.Option) []models.Option {
	out := append([]models.Option(nil), options...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// BuildResult dựng kết quả chấm từ attempt đã hoàn thành và các Answer đã lưu
func BuildResult(attempt *models.QuizAttempt, quiz *models.Quiz, answers []models.Answer) *models.AttemptResultDTO {
	byQuestion := make(map[uuid.UUID]models.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	out := &models.AttemptResultDTO{
		AttemptID:    attempt.ID,
		QuizID:       quiz.ID,
		QuizTitle:    quiz.Title,
		Status:       attempt.Status,
		Score:        attempt.Score,
		EarnedPoints: attempt.EarnedPoints,
		TotalPoints:  attempt.TotalPoints,
		CorrectCount: attempt.CorrectCount,
		TimedOut:     attempt.TimedOut,
		StartedAt:    attempt.StartedAt,
		DeadlineAt:   attempt.DeadlineAt,
		CompletedAt:  attempt.CompletedAt,
		Questions:    make([]models.ResultQuestionDTO, 0, len(quiz.Questions)),
	}
	if attempt.CompletedAt != nil {
		out.ElapsedSeconds = int64(attempt.CompletedAt.Sub(attempt.StartedAt).Seconds())
	}

	questions := orderedQuestions(quiz.Questions, attempt.Order())
	for i := range questions {
		q := &questions[i]
		rq := models.ResultQuestionDTO{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Points:       q.Points,
			Explanation:  q.Explanation,
			Options:      []models.ResultOptionDTO{},
		}
		if q.QuestionType == models.ShortAnswer {
			rq.CorrectAnswerText = q.SampleAnswer()
		} else {
			for _, o := range sortOptions(q.Options) {
				rq.Options = append(rq.Options, models.ResultOptionDTO{ID: o.ID, OptionText: o.OptionText, IsCorrect: o.IsCorrect})
			}
			if co := q.CorrectOption(); co != nil {
				id := co.ID
				rq.CorrectOptionID = &id
				rq.CorrectAnswerText = co.OptionText
			}
		}
		if a, ok := byQuestion[q.ID]; ok {
			rq.SelectedOptionID = a.SelectedOptionID
			rq.ShortAnswerText = a.ShortAnswerText
			rq.IsCorrect = a.IsCorrect
			rq.PointsEarned = a.PointsEarned
			rq.Answered = a.SelectedOptionID != nil || (a.ShortAnswerText != nil && *a.ShortAnswerText != "")
		}
		switch {
		case !rq.Answered:
			out.UnansweredCount++
		case !rq.IsCorrect:
			out.IncorrectCount++
		}
		out.Questions = append(out.Questions, rq)
	}
	return out
}

// orderedQuestions trả câu hỏi theo thứ tự của attempt (nếu có), ngược lại theo sort_order
func orderedQuestions(questions []models.Question, order []uuid.UUID) []models.Question {
	sorted := SortQuestions(questions)
	if len(order) == 0 {
		return sorted
	}
	pos := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, oki := pos[sorted[i].ID]
		pj, okj := pos[sorted[j].ID]
		if oki != okj {
			return oki
		}
		return pi < pj
	})
	return sorted
}
