package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
	"github.com/xuri/excelize/v2"
)

const attemptsSheet = "Attempts"

var attemptsHeader = []string{"STT", "Họ tên", "Email", "Điểm (%)", "Điểm đạt", "Tổng điểm", "Số câu đúng", "Hết giờ", "Bắt đầu", "Nộp bài", "Thời gian (giây)"}

// ExportAttempts xuất các lượt đã hoàn thành của quiz ra file xlsx (admin hoặc người tạo)
func (s *QuizService) ExportAttempts(ctx context.Context, actor *Actor, quizID uuid.UUID) (*excelize.File, string, error) {
	db := s.db.WithContext(ctx)
	quiz, err := s.managed(db, actor, quizID)
	if err != nil {
		return nil, "", err
	}

	var attempts []models.QuizAttempt
	err = db.Preload("User").
		Where("quiz_id = ? AND status = ?", quizID, models.AttemptCompleted).
		Order("completed_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return nil, "", err
	}

	for i, h := range attemptsHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(attemptsSheet, cell, h); err != nil {
			return nil, "", err
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err == nil {
		lastCol, _ := excelize.ColumnNumberToName(len(attemptsHeader))
		_ = f.SetCellStyle(attemptsSheet, "A1", lastCol+"1", headerStyle)
	}

	for i, a := range attempts {
		row := i + 2
		var completed string
		var elapsed int64
		if a.CompletedAt != nil {
			completed = a.CompletedAt.Format(time.DateTime)
			elapsed = int64(a.CompletedAt.Sub(a.StartedAt).Seconds())
		}
		timedOut := "Không"
		if a.TimedOut {
			timedOut = "Có"
		}
		values := []interface{}{
			i + 1,
			a.User.FullName,
			a.User.Email,
			a.Score,
			a.EarnedPoints,
			a.TotalPoints,
			a.CorrectCount,
			timedOut,
			a.StartedAt.Format(time.DateTime),
			completed,
			elapsed,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(attemptsSheet, cell, &values); err != nil {
			return nil, "", err
		}
	}
	_ = f.SetColWidth(attemptsSheet, "B", "C", 28)
	_ = f.SetColWidth(attemptsSheet, "I", "J", 20)

	filename := fmt.Sprintf("%s-attempts.xlsx", quiz.Slug)
	if quiz.Slug == "" {
		filename = fmt.Sprintf("quiz-%s-attempts.xlsx", quiz.ID)
	}
	return f, filename, nil
}
