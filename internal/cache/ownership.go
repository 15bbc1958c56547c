package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

// OwnershipCache 缓存单个活动的归属计算结果。
// 每个日期有一个代数计数器，班次变更时只需要递增计数器即可让该日期下的所有缓存失效
type OwnershipCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOwnershipCache(rdb *redis.Client, ttl time.Duration) *OwnershipCache {
	return &OwnershipCache{
		rdb: rdb,
		ttl: ttl,
	}
}

func generationKey(date string) string {
	return fmt.Sprintf("ownership_gen_%s", date)
}

func ownershipKey(generation int64, event *domain.Event) string {
	manualOwner := "none"
	if event.ManualOwner != nil {
		manualOwner = strconv.FormatInt(*event.ManualOwner, 10)
	}
	return fmt.Sprintf("ownership_%d_%d_v%d_%s_%s", generation, event.ID, event.Version, event.Date, manualOwner)
}

// Generation 返回某天当前的缓存代数。调用方必须在读取班次之前取得代数，
// 并用同一个代数调用 Get 和 Set，这样在计算期间发生的失效不会被新结果覆盖
func (c *OwnershipCache) Generation(ctx context.Context, date string) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(date)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return gen, nil
}

// Get 返回该代数下缓存的结果，第二个返回值表示是否命中
func (c *OwnershipCache) Get(ctx context.Context, generation int64, event *domain.Event) (*domain.OwnershipResult, bool, error) {
	data, err := c.rdb.Get(ctx, ownershipKey(generation, event)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	result := &domain.OwnershipResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, false, err
	}

	return result, true, nil
}

// Set 把结果写在 generation 对应的键下。若期间日期已经失效，写入的键不会再被读到
func (c *OwnershipCache) Set(ctx context.Context, generation int64, event *domain.Event, result *domain.OwnershipResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, ownershipKey(generation, event), data, c.ttl).Err()
}

func (c *OwnershipCache) InvalidateDate(ctx context.Context, date string) error {
	return c.rdb.Incr(ctx, generationKey(date)).Err()
}
