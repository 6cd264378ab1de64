package services

import (
	"context"
	"mime/multipart"
)

// FileStorage lưu file upload (avatar, ảnh bìa quiz) và trả về URL công khai
type FileStorage interface {
	Upload(ctx context.Context, folder string, fh *multipart.FileHeader) (string, error)
	Delete(ctx context.Context, publicURL string) error
}

// Container gom các service dùng chung, được gắn vào gin.Context bởi middleware
type Container struct {
	Attempts  *AttemptService
	Quizzes   *QuizService
	Generator *QuestionGenerator
	Cache     *QuizCache
	Events    EventPublisher
	Storage   FileStorage
}
