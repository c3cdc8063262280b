// 包 status：区域构建状态记录（状态、最近错误、最近任务 ID、更新时间）
// 背景：后台构建失败不再只留在日志里，调用方可以按区域查询最近一次尝试的结果
package status

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/juju/errors"
)

type State string

const (
	StateMissing  State = "missing"
	StateBuilding State = "building"
	StateCached   State = "cached"
)

// Record：TaskID 为执行该次尝试的任务；MergedTaskIDs 为并入同一次尝试的其他任务
type Record struct {
	RegionID      int       `json:"region_id"`
	State         State     `json:"state"`
	LastError     string    `json:"last_error,omitempty"`
	TaskID        string    `json:"task_id,omitempty"`
	MergedTaskIDs []string  `json:"merged_task_ids,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasTask：任务是否执行或并入了该记录对应的尝试
func (r Record) HasTask(id string) bool {
	if id == "" {
		return false
	}
	if r.TaskID == id {
		return true
	}
	for _, m := range r.MergedTaskIDs {
		if m == id {
			return true
		}
	}
	return false
}

// Store：状态存储；Get 在无记录时返回 NotFound
type Store interface {
	Get(ctx context.Context, regionID int) (Record, error)
	Put(ctx context.Context, r Record) error
	List(ctx context.Context) ([]Record, error)
}

// Memory：进程内状态存储（默认实现，重启后丢失）
type Memory struct {
	mu   sync.RWMutex
	recs map[int]Record
}

func NewMemory() *Memory { return &Memory{recs: make(map[int]Record)} }

func (m *Memory) Get(_ context.Context, regionID int) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recs[regionID]
	if !ok {
		return Record{}, errors.NotFoundf("status of region %d", regionID)
	}
	return r, nil
}

func (m *Memory) Put(_ context.Context, r Record) error {
	m.mu.Lock()
	m.recs[r.RegionID] = r
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out, nil
}
