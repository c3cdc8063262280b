package build

import "fmt"

// 构建阶段名，用于日志、指标标签与错误上下文
const (
	StageLock       = "lock"
	StageInvalidate = "invalidate"
	StageBoundary   = "boundary"
	StageTowns      = "towns"
	StageMatrix     = "matrix"
	StageLevels     = "levels"
	StageAssemble   = "assemble"
	StageStore      = "store"
)

// StageError：某区域某阶段的失败；Unwrap 保留底层错误类别（NotFound、AssemblyError、CacheIOError）
type StageError struct {
	RegionID int
	Stage    string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("region %d: %s: %v", e.RegionID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
