// 包 lock：按区域加锁，保证同一区域同一时刻只有一次构建尝试
package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"popframe-api/internal/logger"

	"golang.org/x/sync/semaphore"
)

// Release：释放已获取的锁；重复调用无副作用
type Release func()

// Locker：区域锁
type Locker interface {
	Acquire(ctx context.Context, regionID int) (Release, error)
}

// Table：进程内锁表（区域 ID -> 权重为 1 的信号量）
// 约束：不同区域互不阻塞；无持有者与等待者时条目被移除，锁表不随区域数增长
type Table struct {
	mu    sync.Mutex
	locks map[int]*regionLock
}

type regionLock struct {
	sem  *semaphore.Weighted
	refs int64
}

func NewTable() *Table {
	return &Table{locks: make(map[int]*regionLock)}
}

// Acquire：等待并持有区域锁；ctx 取消时返回其错误
func (t *Table) Acquire(ctx context.Context, regionID int) (Release, error) {
	t.mu.Lock()
	rl, ok := t.locks[regionID]
	if !ok {
		rl = &regionLock{sem: semaphore.NewWeighted(1)}
		t.locks[regionID] = rl
	}
	rl.refs++
	t.mu.Unlock()

	start := time.Now()
	if err := rl.sem.Acquire(ctx, 1); err != nil {
		t.drop(regionID, rl)
		return nil, err
	}
	logger.L().Debug("region_lock_acquire", "region", regionID, "wait_ms", time.Since(start).Milliseconds())
	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		rl.sem.Release(1)
		t.drop(regionID, rl)
	}, nil
}

func (t *Table) drop(regionID int, rl *regionLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rl.refs--
	if rl.refs == 0 && t.locks[regionID] == rl {
		delete(t.locks, regionID)
	}
}

// Size：当前锁表条目数
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// Chain：按顺序获取多把锁，按相反顺序释放；任一获取失败时已持有的锁全部释放
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

type chain []Locker

func (c chain) Acquire(ctx context.Context, regionID int) (Release, error) {
	held := make([]Release, 0, len(c))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, l := range c {
		if l == nil {
			continue
		}
		r, err := l.Acquire(ctx, regionID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, r)
	}
	return releaseAll, nil
}
