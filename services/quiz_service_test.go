package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/internal/testutil"
	"github.com/vnkhanh/siquiz-backend/models"
)

func mcInput(text string, correct int, options ...string) QuestionInput {
	in := QuestionInput{QuestionText: text, QuestionType: models.MultipleChoice, Points: 1}
	for i, o := range options {
		in.Options = append(in.Options, OptionInput{OptionText: o, IsCorrect: i == correct})
	}
	return in
}

func TestValidateQuestion(t *testing.T) {
	cases := []struct {
		name  string
		in    QuestionInput
		field string
	}{
		{"mc one option", mcInput("Q", 0, "a"), "q.options"},
		{"mc two correct", QuestionInput{QuestionText: "Q", QuestionType: models.MultipleChoice, Options: []OptionInput{
			{OptionText: "a", IsCorrect: true}, {OptionText: "b", IsCorrect: true},
		}}, "q.options"},
		{"tf three options", QuestionInput{QuestionText: "Q", QuestionType: models.TrueFalse, Options: []OptionInput{
			{OptionText: "a", IsCorrect: true}, {OptionText: "b"}, {OptionText: "c"},
		}}, "q.options"},
		{"short answer without sample", QuestionInput{QuestionText: "Q", QuestionType: models.ShortAnswer}, "q.correct_answer_text"},
		{"unknown type", QuestionInput{QuestionText: "Q", QuestionType: "ESSAY"}, "q.question_type"},
		{"blank text", mcInput("  ", 0, "a", "b"), "q.question_text"},
		{"blank option", mcInput("Q", 0, "a", " "), "q.options[1].option_text"},
	}
	for _, tc := range cases {
		verr := &ValidationError{}
		ValidateQuestion(&tc.in, "q", verr)
		if _, ok := verr.Fields[tc.field]; !ok {
			t.Fatalf("%s: errors = %v, want field %s", tc.name, verr.Fields, tc.field)
		}
	}

	valid := []QuestionInput{
		mcInput("Q", 2, "a", "b", "c"),
		{QuestionText: "Q", QuestionType: models.TrueFalse, Options: []OptionInput{{OptionText: "Đúng"}, {OptionText: "Sai", IsCorrect: true}}},
		{QuestionText: "Q", QuestionType: models.ShortAnswer, CorrectAnswerText: "x"},
		{QuestionText: "Q", QuestionType: models.ShortAnswer, Options: []OptionInput{{OptionText: "x"}}},
	}
	for i := range valid {
		verr := &ValidationError{}
		ValidateQuestion(&valid[i], "q", verr)
		if !verr.Empty() {
			t.Fatalf("valid[%d] rejected: %v", i, verr)
		}
	}
}

type quizFixture struct {
	svc     *QuizService
	creator *Actor
	admin   *Actor
	other   *Actor
}

func newQuizFixture(t *testing.T) (*quizFixture, *AttemptService) {
	t.Helper()
	db := testutil.NewDB(t)
	creator := testutil.SeedUser(t, db, "creator@example.com", models.RoleCreator)
	admin := testutil.SeedUser(t, db, "admin@example.com", models.RoleAdmin)
	other := testutil.SeedUser(t, db, "other@example.com", models.RoleCreator)
	return &quizFixture{
		svc:     NewQuizService(db, nil, nil),
		creator: &Actor{ID: creator.ID, Role: creator.Role},
		admin:   &Actor{ID: admin.ID, Role: admin.Role},
		other:   &Actor{ID: other.ID, Role: other.Role},
	}, NewAttemptService(db)
}

func TestCreateQuizDefaultsAndTags(t *testing.T) {
	f, _ := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{
		Title:     "Go cơ bản",
		Duration:  15,
		Tags:      []string{"go", "Go", " backend "},
		Questions: []QuestionInput{mcInput("Q1", 0, "a", "b"), mcInput("Q2", 1, "a", "b")},
	})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	if quiz.Status != models.QuizDraft || quiz.Difficulty != models.DifficultyMedium {
		t.Fatalf("status=%s difficulty=%s, want DRAFT MEDIUM", quiz.Status, quiz.Difficulty)
	}
	if quiz.Slug == "" || quiz.CreatedBy != f.creator.ID {
		t.Fatalf("slug/creator not set: %+v", quiz)
	}
	if len(quiz.Tags) != 2 {
		t.Fatalf("tags = %d, want 2 (case-insensitive dedupe)", len(quiz.Tags))
	}
	if len(quiz.Questions) != 2 || quiz.Questions[1].QuestionText != "Q2" {
		t.Fatalf("questions not kept in order: %+v", quiz.Questions)
	}
	if quiz.TotalPoints() != 2 {
		t.Fatalf("total points = %d, want 2", quiz.TotalPoints())
	}
}

func TestCreateQuizValidation(t *testing.T) {
	f, _ := newQuizFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{
		Title:      " ",
		Difficulty: "IMPOSSIBLE",
		Questions:  []QuestionInput{mcInput("Q", 0, "a")},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateQuiz = %v, want ValidationError", err)
	}
	for _, field := range []string{"title", "difficulty", "questions[0].options"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("missing error for %s: %v", field, verr.Fields)
		}
	}

	if _, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "x", CategoryID: ptrUUID(uuid.New())}); !errors.As(err, &verr) {
		t.Fatalf("unknown category = %v, want ValidationError", err)
	}
	if _, err := f.svc.CreateQuiz(ctx, nil, QuizInput{Title: "x"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous create = %v, want ErrUnauthorized", err)
	}
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func TestStatusTransitions(t *testing.T) {
	f, _ := newQuizFixture(t)
	ctx := context.Background()

	empty, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Trống"})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	var verr *ValidationError
	if _, err := f.svc.SetStatus(ctx, f.creator, empty.ID, models.QuizPublished); !errors.As(err, &verr) {
		t.Fatalf("publishing empty quiz = %v, want ValidationError", err)
	}

	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Có câu", Questions: []QuestionInput{mcInput("Q", 0, "a", "b")}})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, models.QuizArchived); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("DRAFT -> ARCHIVED = %v, want ErrInvalidState", err)
	}
	for _, next := range []models.QuizStatus{models.QuizPublished, models.QuizArchived, models.QuizPublished, models.QuizDraft} {
		got, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, next)
		if err != nil {
			t.Fatalf("-> %s failed: %v", next, err)
		}
		if got.Status != next {
			t.Fatalf("status = %s, want %s", got.Status, next)
		}
	}
	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, "HIDDEN"); !errors.As(err, &verr) {
		t.Fatalf("invalid status = %v, want ValidationError", err)
	}
}

func TestManagePermissions(t *testing.T) {
	f, _ := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Riêng", Questions: []QuestionInput{mcInput("Q", 0, "a", "b")}})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	title := "Đổi tên"

	// quiz nháp của người khác coi như không tồn tại
	if _, err := f.svc.UpdateQuiz(ctx, f.other, quiz.ID, QuizPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other creator on draft = %v, want ErrNotFound", err)
	}
	if _, _, err := f.svc.GetQuiz(ctx, f.other, quiz.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other creator reading draft = %v, want ErrNotFound", err)
	}

	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, models.QuizPublished); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if _, err := f.svc.UpdateQuiz(ctx, f.other, quiz.ID, QuizPatch{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other creator on published = %v, want ErrForbidden", err)
	}
	_, manage, err := f.svc.GetQuiz(ctx, f.other, quiz.ID)
	if err != nil || manage {
		t.Fatalf("other creator reading published = (%v, %v), want read-only", manage, err)
	}

	updated, err := f.svc.UpdateQuiz(ctx, f.admin, quiz.ID, QuizPatch{Title: &title})
	if err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("title = %q, want %q", updated.Title, title)
	}
}

func TestReplaceQuestionsBlockedByAttempts(t *testing.T) {
	f, attempts := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Q", Questions: []QuestionInput{mcInput("Q", 0, "a", "b")}})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	replacement := []QuestionInput{mcInput("Mới 1", 0, "a", "b"), mcInput("Mới 2", 1, "a", "b")}
	updated, err := f.svc.UpdateQuiz(ctx, f.creator, quiz.ID, QuizPatch{Questions: &replacement})
	if err != nil {
		t.Fatalf("replace without attempts failed: %v", err)
	}
	if len(updated.Questions) != 2 || updated.Questions[0].QuestionText != "Mới 1" {
		t.Fatalf("questions not replaced: %+v", updated.Questions)
	}

	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, models.QuizPublished); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if _, _, err := attempts.StartAttempt(ctx, f.other.ID, quiz.ID); err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	if _, err := f.svc.UpdateQuiz(ctx, f.creator, quiz.ID, QuizPatch{Questions: &replacement}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("replace with attempts = %v, want ErrInvalidState", err)
	}
}

func TestQuestionCRUD(t *testing.T) {
	f, _ := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Q", Questions: []QuestionInput{mcInput("Q1", 0, "a", "b")}})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	added, err := f.svc.AddQuestions(ctx, f.creator, quiz.ID, []QuestionInput{
		{QuestionText: "Q2", QuestionType: models.ShortAnswer, CorrectAnswerText: "go", Points: 3},
	})
	if err != nil || len(added) != 1 {
		t.Fatalf("AddQuestions = (%d, %v)", len(added), err)
	}
	if added[0].SortOrder != 1 {
		t.Fatalf("appended sort_order = %d, want 1", added[0].SortOrder)
	}

	updated, err := f.svc.UpdateQuestion(ctx, f.creator, added[0].ID, mcInput("Q2 sửa", 2, "x", "y", "z"))
	if err != nil {
		t.Fatalf("UpdateQuestion failed: %v", err)
	}
	if updated.QuestionType != models.MultipleChoice || len(updated.Options) != 3 || !updated.Options[2].IsCorrect {
		t.Fatalf("question not updated: %+v", updated)
	}

	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, models.QuizPublished); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := f.svc.DeleteQuestion(ctx, f.creator, added[0].ID); err != nil {
		t.Fatalf("DeleteQuestion failed: %v", err)
	}
	var verr *ValidationError
	if err := f.svc.DeleteQuestion(ctx, f.creator, quiz.Questions[0].ID); !errors.As(err, &verr) {
		t.Fatalf("deleting last question of published quiz = %v, want ValidationError", err)
	}
	if err := f.svc.DeleteQuestion(ctx, f.creator, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting missing question = %v, want ErrNotFound", err)
	}
}

func TestDeleteQuizCascades(t *testing.T) {
	f, attempts := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Xóa", Tags: []string{"tmp"}, Questions: []QuestionInput{mcInput("Q", 0, "a", "b")}})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, models.QuizPublished); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	attempt, _, err := attempts.StartAttempt(ctx, f.other.ID, quiz.ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	if _, err := attempts.SubmitAttempt(ctx, f.other.ID, attempt.ID, nil); err != nil {
		t.Fatalf("SubmitAttempt failed: %v", err)
	}

	if err := f.svc.DeleteQuiz(ctx, f.other, quiz.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete by other = %v, want ErrForbidden", err)
	}
	if err := f.svc.DeleteQuiz(ctx, f.creator, quiz.ID); err != nil {
		t.Fatalf("DeleteQuiz failed: %v", err)
	}

	db := f.svc.db
	for _, m := range []interface{}{&models.Quiz{}, &models.Question{}, &models.Option{}, &models.QuizAttempt{}, &models.Answer{}} {
		var n int64
		if err := db.Model(m).Count(&n).Error; err != nil {
			t.Fatalf("count %T failed: %v", m, err)
		}
		if n != 0 {
			t.Fatalf("%T rows left = %d, want 0", m, n)
		}
	}
	var links int64
	db.Table("quiz_tags").Count(&links)
	if links != 0 {
		t.Fatalf("quiz_tags rows left = %d", links)
	}
	var tags int64
	db.Model(&models.Tag{}).Count(&tags)
	if tags != 1 {
		t.Fatalf("tags = %d, tag itself should survive", tags)
	}
}

func TestListQuizzesFilters(t *testing.T) {
	f, _ := newQuizFixture(t)
	ctx := context.Background()

	mk := func(title string, difficulty models.Difficulty, publish bool) *models.Quiz {
		q, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{
			Title:      title,
			Difficulty: difficulty,
			Tags:       []string{"golang"},
			Questions:  []QuestionInput{mcInput("Q", 0, "a", "b")},
		})
		if err != nil {
			t.Fatalf("CreateQuiz failed: %v", err)
		}
		if publish {
			if _, err := f.svc.SetStatus(ctx, f.creator, q.ID, models.QuizPublished); err != nil {
				t.Fatalf("publish failed: %v", err)
			}
		}
		return q
	}
	mk("Goroutine nâng cao", models.DifficultyHard, true)
	mk("Channel cơ bản", models.DifficultyEasy, true)
	mk("Bản nháp", models.DifficultyEasy, false)

	items, total, err := f.svc.ListQuizzes(ctx, nil, QuizFilter{Page: 1, Limit: 10})
	if err != nil || total != 2 || len(items) != 2 {
		t.Fatalf("public list = (%d, %d, %v), want 2 published", len(items), total, err)
	}
	if items[0].QuestionCount != 1 || items[0].CreatorName == "" {
		t.Fatalf("list item missing counts/creator: %+v", items[0])
	}

	_, total, _ = f.svc.ListQuizzes(ctx, nil, QuizFilter{Page: 1, Limit: 10, Difficulty: models.DifficultyEasy})
	if total != 1 {
		t.Fatalf("difficulty filter total = %d, want 1", total)
	}
	items, total, _ = f.svc.ListQuizzes(ctx, nil, QuizFilter{Page: 1, Limit: 10, Search: "GOROUTINE"})
	if total != 1 || items[0].Title != "Goroutine nâng cao" {
		t.Fatalf("search total = %d", total)
	}
	_, total, _ = f.svc.ListQuizzes(ctx, nil, QuizFilter{Page: 1, Limit: 10, Tag: "golang"})
	if total != 2 {
		t.Fatalf("tag filter total = %d, want 2", total)
	}
	_, total, _ = f.svc.ListQuizzes(ctx, f.creator, QuizFilter{Page: 1, Limit: 10, Mine: true})
	if total != 3 {
		t.Fatalf("mine total = %d, want 3 including draft", total)
	}
	_, total, _ = f.svc.ListQuizzes(ctx, f.admin, QuizFilter{Page: 1, Limit: 10, Status: models.QuizDraft})
	if total != 1 {
		t.Fatalf("admin draft filter total = %d, want 1", total)
	}
	items, total, _ = f.svc.ListQuizzes(ctx, nil, QuizFilter{Page: 2, Limit: 1, Sort: "title"})
	if total != 2 || len(items) != 1 || items[0].Title != "Goroutine nâng cao" {
		t.Fatalf("paged title sort = %+v", items)
	}
}

func TestQuizStats(t *testing.T) {
	f, attempts := newQuizFixture(t)
	ctx := context.Background()

	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Thống kê", Questions: []QuestionInput{mcInput("Q", 0, "a", "b")}})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, models.QuizPublished); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	correct := quiz.Questions[0].Options[0].ID
	for i, actor := range []*Actor{f.other, f.admin} {
		a, _, err := attempts.StartAttempt(ctx, actor.ID, quiz.ID)
		if err != nil {
			t.Fatalf("StartAttempt failed: %v", err)
		}
		payload := map[string]AnswerValue{}
		if i == 0 {
			payload[quiz.Questions[0].ID.String()] = AnswerValue{OptionID: correct.String()}
		}
		if _, err := attempts.SubmitAttempt(ctx, actor.ID, a.ID, payload); err != nil {
			t.Fatalf("SubmitAttempt failed: %v", err)
		}
	}

	stats, err := f.svc.Stats(ctx, f.creator, quiz.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Attempts != 2 || stats.Completed != 2 {
		t.Fatalf("attempts=%d completed=%d, want 2 2", stats.Attempts, stats.Completed)
	}
	if stats.AverageScore != 50 || stats.BestScore != 100 || stats.PassRate != 50 {
		t.Fatalf("avg=%v best=%v pass=%v, want 50 100 50", stats.AverageScore, stats.BestScore, stats.PassRate)
	}
}

func TestQuestionEditsKeepCompletedResults(t *testing.T) {
	f, attempts := newQuizFixture(t)
	ctx := context.Background()
	db := f.svc.db

	q1 := mcInput("Q1", 0, "a", "b")
	q1.Points = 2
	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Lịch sử", Questions: []QuestionInput{q1, mcInput("Q2", 1, "a", "b")}})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, models.QuizPublished); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	first, second := quiz.Questions[0], quiz.Questions[1]
	correct := first.Options[0].ID

	attempt, _, err := attempts.StartAttempt(ctx, f.other.ID, quiz.ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	res, err := attempts.SubmitAttempt(ctx, f.other.ID, attempt.ID, map[string]AnswerValue{first.ID.String(): {OptionID: correct.String()}})
	if err != nil || res.Score != 67 || res.TotalPoints != 3 {
		t.Fatalf("submit = (%+v, %v), want score 67 of 3 points", res, err)
	}

	morePoints := mcInput("Q1", 0, "a", "b")
	morePoints.Points = 5
	if _, err := f.svc.UpdateQuestion(ctx, f.creator, first.ID, morePoints); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("changing points = %v, want ErrInvalidState", err)
	}
	newOptions := mcInput("Q1", 1, "c", "d")
	newOptions.Points = 2
	if _, err := f.svc.UpdateQuestion(ctx, f.creator, first.ID, newOptions); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("changing options = %v, want ErrInvalidState", err)
	}
	if err := f.svc.DeleteQuestion(ctx, f.creator, second.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("deleting question = %v, want ErrInvalidState", err)
	}

	// sửa câu chữ vẫn được phép
	reworded := mcInput("Q1 (đã sửa chính tả)", 0, "a", "b")
	reworded.Points = 2
	updated, err := f.svc.UpdateQuestion(ctx, f.creator, first.ID, reworded)
	if err != nil {
		t.Fatalf("rewording failed: %v", err)
	}
	if updated.QuestionText != "Q1 (đã sửa chính tả)" || updated.Options[0].ID != correct {
		t.Fatalf("reworded question = %+v", updated)
	}

	if _, err := f.svc.AddQuestions(ctx, f.creator, quiz.ID, []QuestionInput{mcInput("Q3", 0, "a", "b")}); err != nil {
		t.Fatalf("AddQuestions failed: %v", err)
	}

	var rows []models.Answer
	db.Where("attempt_id = ?", attempt.ID).Find(&rows)
	if len(rows) != 2 {
		t.Fatalf("answer rows = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if r.QuestionID == first.ID && (r.SelectedOptionID == nil || *r.SelectedOptionID != correct) {
			t.Fatalf("completed answer was rewritten: %+v", r)
		}
	}

	view, err := attempts.GetAttempt(ctx, f.other.ID, attempt.ID)
	if err != nil || view.Result == nil {
		t.Fatalf("GetAttempt = (%+v, %v), want result", view, err)
	}
	sum := 0
	for _, q := range view.Result.Questions {
		sum += q.Points
	}
	if len(view.Result.Questions) != 2 || sum != view.Result.TotalPoints || view.Result.TotalPoints != 3 {
		t.Fatalf("result has %d questions, points %d, total %d; want 2, 3, 3", len(view.Result.Questions), sum, view.Result.TotalPoints)
	}
	if !view.Result.Questions[0].Answered || !view.Result.Questions[0].IsCorrect {
		t.Fatalf("first question should stay answered and correct: %+v", view.Result.Questions[0])
	}
}

func TestQuestionEditsClearInProgressAnswers(t *testing.T) {
	f, attempts := newQuizFixture(t)
	ctx := context.Background()
	db := f.svc.db

	quiz, err := f.svc.CreateQuiz(ctx, f.creator, QuizInput{Title: "Đang làm", Questions: []QuestionInput{mcInput("Q1", 0, "a", "b"), mcInput("Q2", 0, "a", "b")}})
	if err != nil {
		t.Fatalf("CreateQuiz failed: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.creator, quiz.ID, models.QuizPublished); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	first, second := quiz.Questions[0], quiz.Questions[1]

	attempt, _, err := attempts.StartAttempt(ctx, f.other.ID, quiz.ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	err = attempts.SaveAnswers(ctx, f.other.ID, attempt.ID, map[uuid.UUID]AnswerValue{
		first.ID:  {OptionID: first.Options[0].ID.String()},
		second.ID: {OptionID: second.Options[0].ID.String()},
	})
	if err != nil {
		t.Fatalf("SaveAnswers failed: %v", err)
	}

	if _, err := f.svc.UpdateQuestion(ctx, f.creator, first.ID, mcInput("Q1", 1, "c", "d")); err != nil {
		t.Fatalf("UpdateQuestion with only in-progress attempts failed: %v", err)
	}
	var saved models.Answer
	db.First(&saved, "attempt_id = ? AND question_id = ?", attempt.ID, first.ID)
	if saved.SelectedOptionID != nil {
		t.Fatalf("saved option of replaced question should be cleared")
	}

	if err := f.svc.DeleteQuestion(ctx, f.creator, second.ID); err != nil {
		t.Fatalf("DeleteQuestion failed: %v", err)
	}
	var left int64
	db.Model(&models.Answer{}).Where("question_id = ?", second.ID).Count(&left)
	if left != 0 {
		t.Fatalf("answers of deleted question = %d, want 0", left)
	}
}
