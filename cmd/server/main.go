package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/vnkhanh/siquiz-backend/config"
	"github.com/vnkhanh/siquiz-backend/routes"
	"github.com/vnkhanh/siquiz-backend/services"
	"github.com/vnkhanh/siquiz-backend/utils"
	"github.com/vnkhanh/siquiz-backend/ws"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("Không tìm thấy file .env")
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET chưa được cấu hình")
	}
	utils.InitJWT(cfg.JWTSecret, cfg.JWTTTL)

	db := config.InitDB(cfg)
	rdb := config.InitRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	events, err := services.NewEventPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
	if err != nil {
		log.Printf("Không kết nối được RabbitMQ (%v), tắt phát sự kiện", err)
		events = services.NoopPublisher{}
	}
	defer events.Close()

	cache := services.NewQuizCache(rdb, cfg.QuizCacheTTL)
	quizzes := services.NewQuizService(db, cache, events)
	attempts := services.NewAttemptService(db,
		services.WithGrace(cfg.SubmitGrace),
		services.WithCache(cache),
		services.WithEvents(events),
		services.WithNotifier(ws.H),
	)
	container := &services.Container{
		Attempts:  attempts,
		Quizzes:   quizzes,
		Generator: services.NewQuestionGenerator(db, services.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel), quizzes),
		Cache:     cache,
		Events:    events,
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		container.Storage = utils.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	} else {
		log.Println("SUPABASE_URL/SUPABASE_KEY trống, tắt upload file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chốt các lượt làm bài hết giờ mà không ai nộp
	utils.StartExpiryJob(ctx, attempts, cfg.ExpirySweep)

	r := gin.Default()

	//Bật CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Auth-Token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r = routes.SetupRouter(r, db, container)

	r.GET("/", func(c *gin.Context) {
		c.String(200, "Siquiz server is running")
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Println("Server running at Port:" + cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server lỗi: ", err)
		}
	}()

	<-ctx.Done()
	log.Println("Đang tắt server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown lỗi: %v", err)
	}
}
