package client

import (
	"context"
	"fmt"
	"time"
)

// Countdown đếm ngược tới deadline do server cấp (deadline_at), không dựa vào duration phía client
type Countdown struct {
	Deadline time.Time
	Interval time.Duration
	Now      func() time.Time
}

func NewCountdown(deadline time.Time) *Countdown {
	return &Countdown{Deadline: deadline, Interval: time.Second, Now: time.Now}
}

func (c *Countdown) Remaining() time.Duration {
	d := c.Deadline.Sub(c.Now())
	if d < 0 {
		return 0
	}
	return d
}

// Run gọi onTick mỗi Interval. Trả true khi hết giờ, false khi ctx bị hủy (nộp bài hoặc thoát).
func (c *Countdown) Run(ctx context.Context, onTick func(remaining time.Duration)) bool {
	if c.Remaining() == 0 {
		return true
	}
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			left := c.Remaining()
			if onTick != nil {
				onTick(left)
			}
			if left == 0 {
				return true
			}
		}
	}
}

// FormatRemaining: 125s -> "02:05", trên 1 giờ -> "1:02:05"
func FormatRemaining(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
