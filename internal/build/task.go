package build

import (
	"context"
	"sync"
	"time"

	"popframe-api/internal/logger"
	"popframe-api/internal/status"

	"github.com/google/uuid"
)

type taskKey struct{}

func withTask(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskKey{}, id)
}

func taskID(ctx context.Context) string {
	id, _ := ctx.Value(taskKey{}).(string)
	return id
}

// Task：后台构建句柄
// 约束：与进行中的同区域构建合并时不另起尝试，ID 记录在该次尝试状态的 MergedTaskIDs 中，
// 因此按任务查询状态应使用 Record.HasTask 而不是只比较 TaskID
type Task struct {
	ID       string
	RegionID int
	Force    bool
	Started  time.Time

	done  chan struct{}
	mu    sync.Mutex
	state status.State
	err   error
}

// Done：构建结束（成功或失败）后关闭
func (t *Task) Done() <-chan struct{} { return t.done }

// Err：构建结束前返回 nil
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// State：构建结束前为 building
func (t *Task) State() status.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Trigger：后台启动构建并立即返回句柄；未知区域返回 NotFound
// 约束：构建使用编排器自身的上下文与 BuildTimeout，不依赖调用方请求的生命周期
func (o *Orchestrator) Trigger(regionID int, force bool) (*Task, error) {
	desc, err := o.catalog.Resolve(regionID)
	if err != nil {
		return nil, err
	}
	t := &Task{ID: uuid.NewString(), RegionID: desc.ID, Force: force, Started: time.Now().UTC(), done: make(chan struct{}), state: status.StateBuilding}
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		defer close(t.done)
		ctx, cancel := context.WithTimeout(withTask(o.base, t.ID), o.opts.BuildTimeout)
		defer cancel()
		st, err := o.Build(ctx, desc.ID, force)
		t.mu.Lock()
		t.state, t.err = st, err
		t.mu.Unlock()
		logger.Region(desc.ID, desc.Name).Info("build_task_done", "task_id", t.ID, "state", st, "ok", err == nil)
	}()
	logger.Region(desc.ID, desc.Name).Info("build_task_start", "task_id", t.ID, "force", force)
	return t, nil
}

// Close：取消进行中的后台构建并等待其退出
func (o *Orchestrator) Close() {
	o.cancel()
	o.tasks.Wait()
}
