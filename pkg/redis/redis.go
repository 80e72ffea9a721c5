package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"curriplan/config"
	pkgerrors "curriplan/pkg/errors"
)

// Client Redis 客户端封装
// 当前用于合班组键互斥锁与接口限流
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 组键互斥锁 ──

const lockPrefix = "coteaching:lock:"

// unlockScript 仅删除自己持有的锁
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockKeys 按字典序依次获取多个键的互斥锁，任一失败则释放已获取的锁并返回 ErrLockNotAcquired。
// 返回的 unlock 函数可重复调用。
func (c *Client) LockKeys(ctx context.Context, keys []string, ttl time.Duration) (func(), error) {
	sorted := uniqueSorted(keys)
	token := uuid.New().String()
	held := make([]string, 0, len(sorted))

	release := func() {
		// 请求上下文可能已取消，释放锁使用独立超时
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, k := range held {
			if err := unlockScript.Run(rctx, c.rdb, []string{lockPrefix + k}, token).Err(); err != nil {
				c.logger.Warn("释放组键锁失败", zap.String("key", k), zap.Error(err))
			}
		}
		held = held[:0]
	}

	for _, k := range sorted {
		ok, err := c.rdb.SetNX(ctx, lockPrefix+k, token, ttl).Result()
		if err != nil {
			release()
			return nil, fmt.Errorf("获取组键锁失败: %w", err)
		}
		if !ok {
			release()
			return nil, pkgerrors.ErrLockNotAcquired
		}
		held = append(held, k)
	}

	return release, nil
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ── 限流 ──

// CheckRateLimit 滑动窗口限流：窗口内请求数不超过 limit 时返回 true
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now), Member: strconv.FormatInt(now, 10) + "-" + uuid.New().String()})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() < int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
