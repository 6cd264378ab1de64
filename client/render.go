package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vnkhanh/siquiz-backend/models"
)

const optionLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func optionLetter(i int) string {
	if i < len(optionLetters) {
		return string(optionLetters[i])
	}
	return fmt.Sprintf("%d", i+1)
}

// RenderQuestion in câu hỏi hiện tại, đánh dấu lựa chọn đã chọn bằng "*"
func RenderQuestion(w io.Writer, q models.TakeQuestionDTO, index, total int, answer *models.SavedAnswer) {
	fmt.Fprintf(w, "\nCâu %d/%d (%d điểm)\n", index+1, total, q.Points)
	fmt.Fprintln(w, q.QuestionText)
	if q.QuestionType == models.ShortAnswer {
		current := ""
		if answer != nil && answer.Text != nil {
			current = *answer.Text
		}
		fmt.Fprintf(w, "  Trả lời: %s\n", current)
		fmt.Fprintln(w, "  (gõ câu trả lời rồi Enter)")
		return
	}
	for i, opt := range q.Options {
		mark := " "
		if answer != nil && answer.SelectedOptionID != nil && *answer.SelectedOptionID == opt.ID {
			mark = "*"
		}
		fmt.Fprintf(w, " %s %s. %s\n", mark, optionLetter(i), opt.OptionText)
	}
}

// RenderResult in điểm, thống kê và từng câu kèm đáp án đúng + giải thích
func RenderResult(w io.Writer, r *models.AttemptResultDTO) {
	line := strings.Repeat("=", 48)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Kết quả: %s\n", r.QuizTitle)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Điểm: %.0f/100\n", r.Score)
	fmt.Fprintf(w, "Đúng: %d  Sai: %d  Bỏ trống: %d\n", r.CorrectCount, r.IncorrectCount, r.UnansweredCount)
	fmt.Fprintf(w, "Điểm đạt được: %d/%d\n", r.EarnedPoints, r.TotalPoints)
	fmt.Fprintf(w, "Thời gian làm: %s\n", FormatRemaining(elapsed(r)))
	if r.TimedOut {
		fmt.Fprintln(w, "(Hết giờ, bài được nộp tự động)")
	}

	for i, q := range r.Questions {
		status := "SAI"
		switch {
		case q.IsCorrect:
			status = "ĐÚNG"
		case !q.Answered:
			status = "BỎ TRỐNG"
		}
		fmt.Fprintf(w, "\n%d. [%s] %s (%d/%d)\n", i+1, status, q.QuestionText, q.PointsEarned, q.Points)

		if q.QuestionType == models.ShortAnswer {
			if q.ShortAnswerText != nil {
				fmt.Fprintf(w, "   Bạn trả lời: %s\n", *q.ShortAnswerText)
			}
			fmt.Fprintf(w, "   Đáp án: %s\n", q.CorrectAnswerText)
		} else {
			for j, opt := range q.Options {
				marks := ""
				if opt.IsCorrect {
					marks += " ✓"
				}
				if q.SelectedOptionID != nil && *q.SelectedOptionID == opt.ID {
					marks += " (bạn chọn)"
				}
				fmt.Fprintf(w, "   %s. %s%s\n", optionLetter(j), opt.OptionText, marks)
			}
		}
		if q.Explanation != "" {
			fmt.Fprintf(w, "   Giải thích: %s\n", q.Explanation)
		}
	}
}

// elapsed = completed_at - started_at, fallback sang elapsed_seconds của server
func elapsed(r *models.AttemptResultDTO) time.Duration {
	if r.CompletedAt != nil {
		if d := r.CompletedAt.Sub(r.StartedAt); d > 0 {
			return d
		}
		return 0
	}
	return time.Duration(r.ElapsedSeconds) * time.Second
}
