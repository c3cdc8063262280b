// 包 migrate：启动时创建构建状态表
package migrate

import (
	"context"
	"database/sql"

	"popframe-api/internal/logger"

	"github.com/juju/errors"
)

// 背景：首次运行自动创建状态表与索引，保障状态存储可直接写入
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _region_build_status (
			region_id INT PRIMARY KEY,
			state TEXT NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			task_id TEXT NOT NULL DEFAULT '',
			merged_task_ids TEXT[],
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`ALTER TABLE _region_build_status ADD COLUMN IF NOT EXISTS merged_task_ids TEXT[]`,
		`CREATE INDEX IF NOT EXISTS idx_region_build_status_state ON _region_build_status(state)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return errors.Annotatef(err, "schema statement %d", i)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
