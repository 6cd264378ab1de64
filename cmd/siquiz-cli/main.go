package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/vnkhanh/siquiz-backend/client"
)

const usage = `siquiz-cli <command> [flags]

Commands:
  login -email <email> -password <password>   đăng nhập và lưu token
  list  [-page N] [-search text]              danh sách quiz đã xuất bản
  take  <quiz_id>                             làm quiz (có đồng hồ đếm ngược)`

func tokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".siquiz-token"
	}
	return filepath.Join(home, ".siquiz-token")
}

func loadToken() string {
	if t := os.Getenv("SIQUIZ_TOKEN"); t != "" {
		return t
	}
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("SIQUIZ_API", "http://127.0.0.1:8080"), "Siquiz API base URL")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(*server, loadToken())
	args := flag.Args()[1:]

	var err error
	switch flag.Arg(0) {
	case "login":
		err = runLogin(ctx, api, args)
	case "list":
		err = runList(ctx, api, args)
	case "take":
		err = runTake(ctx, api, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, client.ErrQuit) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runLogin(ctx context.Context, api *client.API, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "mật khẩu")
	_ = fs.Parse(args)
	if *email == "" || *password == "" {
		return errors.New("--email và --password là bắt buộc")
	}
	token, err := api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tokenPath(), []byte(token), 0o600); err != nil {
		return fmt.Errorf("không lưu được token: %w", err)
	}
	fmt.Println("Đăng nhập thành công, token lưu tại", tokenPath())
	return nil
}

func runList(ctx context.Context, api *client.API, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	page := fs.Int("page", 1, "trang")
	search := fs.String("search", "", "tìm theo tiêu đề")
	_ = fs.Parse(args)

	res, err := api.ListQuizzes(ctx, *page, *search)
	if err != nil {
		return err
	}
	for _, q := range res.Data {
		duration := "không giới hạn"
		if q.Duration > 0 {
			duration = fmt.Sprintf("%d phút", q.Duration)
		}
		fmt.Printf("%s  %-40s  %-6s  %2d câu  %s\n", q.ID, q.Title, q.Difficulty, q.QuestionCount, duration)
	}
	fmt.Printf("Trang %d/%d (%d quiz)\n", res.Page, res.TotalPages, res.Total)
	return nil
}

func runTake(ctx context.Context, api *client.API, args []string) error {
	if len(args) < 1 {
		return errors.New("thiếu quiz_id")
	}
	quizID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("quiz_id không hợp lệ: %w", err)
	}
	if api.Token == "" {
		return errors.New("chưa đăng nhập, chạy: siquiz-cli login -email ... -password ...")
	}
	app := client.NewApp(api, os.Stdin, os.Stdout)
	return app.Run(ctx, quizID)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
