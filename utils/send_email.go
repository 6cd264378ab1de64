package utils

import (
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strings"
)

type mailConfig struct {
	host string
	port string
	from string
	pass string
}

func loadMailConfig() mailConfig {
	cfg := mailConfig{
		host: os.Getenv("SMTP_HOST"),
		port: os.Getenv("SMTP_PORT"),
		from: os.Getenv("SMTP_EMAIL"),
		pass: os.Getenv("SMTP_PASSWORD"),
	}
	if cfg.host == "" {
		cfg.host = "smtp.gmail.com"
	}
	if cfg.port == "" {
		cfg.port = "587"
	}
	return cfg
}

// BuildMessage dựng email HTML UTF-8 kèm header
func BuildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// SendEmail gửi mail qua SMTP (mặc định Gmail 587, đổi bằng SMTP_HOST/SMTP_PORT)
func SendEmail(to, subject, body string) error {
	cfg := loadMailConfig()
	if cfg.from == "" {
		return fmt.Errorf("gửi email thất bại: thiếu SMTP_EMAIL")
	}

	err := smtp.SendMail(
		net.JoinHostPort(cfg.host, cfg.port),
		smtp.PlainAuth("", cfg.from, cfg.pass, cfg.host),
		cfg.from,
		[]string{to},
		BuildMessage(cfg.from, to, subject, body),
	)
	if err != nil {
		return fmt.Errorf("gửi email thất bại: %w", err)
	}
	return nil
}
