package utils

import (
	"context"
	"log"
	"time"
)

// AttemptExpirer chốt các lượt làm đã quá hạn
type AttemptExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

func runExpiry(ctx context.Context, expirer AttemptExpirer) {
	n, err := expirer.ExpireOverdue(ctx)
	if err != nil {
		log.Printf("[Expiry] lỗi khi chốt lượt hết giờ: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Expiry] đã chốt %d lượt làm hết giờ", n)
	}
}

// StartExpiryJob chạy ngay một lần rồi lặp theo interval cho tới khi ctx bị hủy
func StartExpiryJob(ctx context.Context, expirer AttemptExpirer, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	runExpiry(ctx, expirer)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("[Expiry] job dừng")
				return
			case <-ticker.C:
				runExpiry(ctx, expirer)
			}
		}
	}()

	log.Printf("[Expiry] job đã được khởi động (chạy mỗi %s)", interval)
}
