package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/siquiz-backend/services"
	"gorm.io/gorm"
)

// DBMiddleware gắn *gorm.DB vào context, controller lấy bằng c.MustGet("db")
func DBMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

// ServicesMiddleware gắn container service, controller lấy bằng c.MustGet("svc")
func ServicesMiddleware(svc *services.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("svc", svc)
		c.Next()
	}
}
