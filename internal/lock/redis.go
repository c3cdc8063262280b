package lock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"popframe-api/internal/logger"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix：跨进程构建锁的键前缀
const KeyPrefix = "popframe:build:lock:"

var (
	releaseScript = redis.NewScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`)
	extendScript  = redis.NewScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) end return 0`)
)

// 文档注释：基于 Redis 的跨进程区域锁
// 背景：多实例共享同一数据目录时，进程内锁无法阻止两个实例同时构建同一区域。
// 约束：SET NX PX 获取，持有期间按 TTL/3 续期；释放时仅删除自己写入的令牌（比较后删除）。
// rc 为 nil 时视为无锁直接放行，与未启用 Redis 的部署保持一致。
type RedisLocker struct {
	rc   *redis.Client
	ttl  time.Duration
	poll time.Duration
}

func NewRedisLocker(rc *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisLocker{rc: rc, ttl: ttl, poll: 200 * time.Millisecond}
}

func key(regionID int) string { return KeyPrefix + strconv.Itoa(regionID) }

// Acquire：轮询直到获得锁或 ctx 结束
func (l *RedisLocker) Acquire(ctx context.Context, regionID int) (Release, error) {
	if l == nil || l.rc == nil {
		return func() {}, nil
	}
	k := key(regionID)
	token := uuid.NewString()
	for {
		ok, err := l.rc.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Annotatef(err, "acquire redis lock %s", k)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
	logger.L().Debug("redis_lock_acquire", "region", regionID, "key", k)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(l.ttl / 3)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				n, err := extendScript.Run(context.Background(), l.rc, []string{k}, token, l.ttl.Milliseconds()).Int()
				if err != nil || n == 0 {
					logger.L().Warn("redis_lock_extend_fail", "region", regionID, "key", k, "err", err)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rc, []string{k}, token).Err(); err != nil {
				logger.L().Warn("redis_lock_release_fail", "region", regionID, "key", k, "err", err)
			}
		})
	}, nil
}
