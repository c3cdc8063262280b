package model

import "fmt"

// AssemblyError：组装阶段的一致性错误（id 集合不一致、坐标系不支持、投影失败等）
// 约束：出现即放弃本次构建，不写入任何产物，也不自动重试。
type AssemblyError struct {
	RegionID int
	Reason   string
	Err      error
}

func (e *AssemblyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assemble region %d: %s: %v", e.RegionID, e.Reason, e.Err)
	}
	return fmt.Sprintf("assemble region %d: %s", e.RegionID, e.Reason)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

func assemblyErr(region int, err error, format string, args ...any) *AssemblyError {
	return &AssemblyError{RegionID: region, Reason: fmt.Sprintf(format, args...), Err: err}
}
