package models

import "github.com/google/uuid"

// ensureID sinh UUID phía ứng dụng để không phụ thuộc gen_random_uuid() của postgres
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All trả về toàn bộ model cần AutoMigrate, theo thứ tự phụ thuộc
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Tag{},
		&Quiz{},
		&Question{},
		&Option{},
		&QuizAttempt{},
		&Answer{},
		&AIGenerationLog{},
	}
}
