package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertDeduper 记录已经发送过的交接提醒，保证同一个交接只提醒一次
type AlertDeduper struct {
	rdb        *redis.Client
	expiration time.Duration
}

func NewAlertDeduper(rdb *redis.Client, expiration time.Duration) *AlertDeduper {
	return &AlertDeduper{
		rdb:        rdb,
		expiration: expiration,
	}
}

func alertKey(eventID int64, date, handOffTime string) string {
	return fmt.Sprintf("handoff_alert_%d_%s_%s", eventID, date, handOffTime)
}

// MarkAlerted 在提醒尚未发送过时做标记并返回 true
func (d *AlertDeduper) MarkAlerted(ctx context.Context, eventID int64, date, handOffTime string) (bool, error) {
	return d.rdb.SetNX(ctx, alertKey(eventID, date, handOffTime), time.Now().Unix(), d.expiration).Result()
}

// Forget 删除提醒标记，用于邮件投递失败后允许重试
func (d *AlertDeduper) Forget(ctx context.Context, eventID int64, date, handOffTime string) error {
	return d.rdb.Del(ctx, alertKey(eventID, date, handOffTime)).Err()
}
