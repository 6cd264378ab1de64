package utils

import (
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("noreply@siquiz.vn", "a@example.com", "Chào mừng", "<p>Xin chào</p>"))

	for _, h := range []string{
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/html; charset=\"UTF-8\"\r\n",
		"From: noreply@siquiz.vn\r\n",
		"To: a@example.com\r\n",
		"Subject: Chào mừng\r\n",
	} {
		if !strings.Contains(msg, h) {
			t.Fatalf("message missing header %q:\n%s", h, msg)
		}
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<p>Xin chào</p>") {
		t.Fatalf("body must follow a blank line:\n%q", msg)
	}
}

func TestMailConfigDefaults(t *testing.T) {
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_PORT", "")
	cfg := loadMailConfig()
	if cfg.host != "smtp.gmail.com" || cfg.port != "587" {
		t.Fatalf("defaults = %s:%s", cfg.host, cfg.port)
	}

	t.Setenv("SMTP_HOST", "mail.local")
	t.Setenv("SMTP_PORT", "2525")
	if cfg := loadMailConfig(); cfg.host != "mail.local" || cfg.port != "2525" {
		t.Fatalf("override = %s:%s", cfg.host, cfg.port)
	}
}

func TestSendEmailRequiresSender(t *testing.T) {
	t.Setenv("SMTP_EMAIL", "")
	if err := SendEmail("a@example.com", "x", "y"); err == nil || !strings.Contains(err.Error(), "SMTP_EMAIL") {
		t.Fatalf("SendEmail without sender = %v", err)
	}
}
