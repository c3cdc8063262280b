package api

import (
	"popframe-api/internal/status"
)

// 文档注释：对外响应结构
// 约束：字段稳定；新增字段需评估前端兼容性。
type messageResponse struct {
	Message string `json:"message"`
}

type triggerResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	TaskID  string `json:"task_id"`
}

type catalogEntry struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	CRS       int          `json:"crs"`
	Available bool         `json:"available"`
	State     status.State `json:"state"`
}

type healthResponse struct {
	OK         bool  `json:"ok"`
	Regions    int   `json:"regions"`
	Available  int   `json:"available"`
	AnalysisOK *bool `json:"analysis_ok,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
