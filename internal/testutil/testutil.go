// Package testutil dựng database sqlite tạm và dữ liệu mẫu cho test.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vnkhanh/siquiz-backend/config"
	"github.com/vnkhanh/siquiz-backend/models"
)

const Password = "secret123"

// NewDB mở sqlite trong thư mục tạm của test, đã AutoMigrate
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := config.OpenDB(sqlite.Open(path+"?_foreign_keys=on"), false)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedUser tạo user với mật khẩu Password
func SeedUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	user := models.User{FullName: "Test " + string(role), Email: email, Password: string(hash), Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

// SeedQuiz tạo quiz cùng câu hỏi. sort_order của câu hỏi theo thứ tự truyền vào.
func SeedQuiz(t *testing.T, db *gorm.DB, creator uuid.UUID, status models.QuizStatus, duration int, questions ...models.Question) models.Quiz {
	t.Helper()

	quiz := models.Quiz{
		Title:      "Quiz " + uuid.NewString()[:8],
		Duration:   duration,
		Difficulty: models.DifficultyMedium,
		Status:     status,
		CreatedBy:  creator,
	}
	for i := range questions {
		questions[i].SortOrder = i
		for j := range questions[i].Options {
			questions[i].Options[j].SortOrder = j
		}
	}
	quiz.Questions = questions
	if err := db.Create(&quiz).Error; err != nil {
		t.Fatalf("create quiz failed: %v", err)
	}
	return quiz
}

// MultipleChoice tạo câu trắc nghiệm, correct là vị trí đáp án đúng
func MultipleChoice(text string, points, correct int, options ...string) models.Question {
	q := models.Question{QuestionText: text, QuestionType: models.MultipleChoice, Points: points}
	for i, o := range options {
		q.Options = append(q.Options, models.Option{OptionText: o, IsCorrect: i == correct})
	}
	return q
}

func TrueFalse(text string, points int, answer bool) models.Question {
	return models.Question{
		QuestionText: text,
		QuestionType: models.TrueFalse,
		Points:       points,
		Options: []models.Option{
			{OptionText: "Đúng", IsCorrect: answer},
			{OptionText: "Sai", IsCorrect: !answer},
		},
	}
}

func ShortAnswer(text string, points int, sample string) models.Question {
	return models.Question{
		QuestionText:      text,
		QuestionType:      models.ShortAnswer,
		Points:            points,
		CorrectAnswerText: sample,
		Explanation:       "Đáp án mẫu: " + sample,
	}
}

// CorrectOptionID / WrongOptionID tiện cho việc dựng câu trả lời trong test
func CorrectOptionID(q models.Question) uuid.UUID {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	return uuid.Nil
}

func WrongOptionID(q models.Question) uuid.UUID {
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o.ID
		}
	}
	return uuid.Nil
}
