package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/siquiz-backend/models"
)

var DB *gorm.DB

type AppConfig struct {
	Port string

	DBDriver   string // postgres | sqlite
	SQLitePath string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimeZone string

	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins []string

	GeminiAPIKey string
	GeminiModel  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL    string
	EventsExchange string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	GoogleClientID string

	SubmitGrace  time.Duration
	ExpirySweep  time.Duration
	QuizCacheTTL time.Duration
	DebugSQL     bool
}

// Load đọc cấu hình từ biến môi trường (đã được godotenv nạp từ .env nếu có)
func Load() *AppConfig {
	return &AppConfig{
		Port: getEnv("PORT", "8080"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		SQLitePath: getEnv("SQLITE_PATH", "siquiz.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "siquiz"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBTimeZone: getEnv("DB_TIMEZONE", "Asia/Ho_Chi_Minh"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTTTL:      time.Duration(getEnvInt("JWT_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		EventsExchange: getEnv("EVENTS_EXCHANGE", "siquiz.events"),

		SupabaseURL:    os.Getenv("SUPABASE_URL"),
		SupabaseKey:    os.Getenv("SUPABASE_KEY"),
		SupabaseBucket: getEnv("SUPABASE_BUCKET", "uploads"),

		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),

		SubmitGrace:  time.Duration(getEnvInt("SUBMIT_GRACE_SECONDS", 30)) * time.Second,
		ExpirySweep:  time.Duration(getEnvInt("EXPIRY_SWEEP_SECONDS", 60)) * time.Second,
		QuizCacheTTL: time.Duration(getEnvInt("QUIZ_CACHE_TTL_SECONDS", 600)) * time.Second,
		DebugSQL:     os.Getenv("GIN_MODE") == "debug",
	}
}

func (c *AppConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.DBTimeZone,
	)
}

// Dialector chọn driver theo DB_DRIVER, sqlite dùng cho chạy local không cần postgres
func (c *AppConfig) Dialector() gorm.Dialector {
	if c.DBDriver == "sqlite" {
		return sqlite.Open(c.SQLitePath + "?_foreign_keys=on")
	}
	return postgres.Open(c.DSN())
}

// OpenDB mở kết nối và AutoMigrate toàn bộ model. Lỗi duplicate key được dịch sang gorm.ErrDuplicatedKey.
func OpenDB(dialector gorm.Dialector, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("kết nối database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("lấy sql.DB từ gorm: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// sqlite chỉ cho một writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("autoMigrate: %w", err)
	}
	return db, nil
}

func InitDB(cfg *AppConfig) *gorm.DB {
	db, err := OpenDB(cfg.Dialector(), cfg.DebugSQL)
	if err != nil {
		log.Fatal("Không thể khởi tạo database: ", err)
	}
	DB = db
	log.Printf("%s connected & migrated successfully!", cfg.DBDriver)
	return db
}

// InitRedis trả nil khi không cấu hình REDIS_ADDR hoặc không ping được (cache bị tắt)
func InitRedis(cfg *AppConfig) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Println("REDIS_ADDR trống, tắt cache")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Không kết nối được redis (%v), tắt cache", err)
		_ = rdb.Close()
		return nil
	}
	log.Println("redis connected")
	return rdb
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("%s=%q không phải số, dùng mặc định %d", key, v, fallback)
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
