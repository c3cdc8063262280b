package status

import (
	"context"
	"database/sql"

	"popframe-api/internal/logger"

	"github.com/juju/errors"
	"github.com/lib/pq"
)

// Postgres：将状态写入 _region_build_status，多实例共享同一视图
// 约束：表结构由 migrate.EnsureSchema 创建
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Get(ctx context.Context, regionID int) (Record, error) {
	row := p.db.QueryRowContext(ctx, "SELECT region_id, state, last_error, task_id, merged_task_ids, updated_at FROM _region_build_status WHERE region_id=$1", regionID)
	var r Record
	var state string
	if err := row.Scan(&r.RegionID, &state, &r.LastError, &r.TaskID, pq.Array(&r.MergedTaskIDs), &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, errors.NotFoundf("status of region %d", regionID)
		}
		return Record{}, errors.Annotatef(err, "read status of region %d", regionID)
	}
	r.State = State(state)
	return r, nil
}

func (p *Postgres) Put(ctx context.Context, r Record) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO _region_build_status(region_id, state, last_error, task_id, merged_task_ids, updated_at)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT (region_id) DO UPDATE SET state=EXCLUDED.state, last_error=EXCLUDED.last_error, task_id=EXCLUDED.task_id, merged_task_ids=EXCLUDED.merged_task_ids, updated_at=EXCLUDED.updated_at`,
		r.RegionID, string(r.State), r.LastError, r.TaskID, pq.Array(r.MergedTaskIDs), r.UpdatedAt)
	if err != nil {
		return errors.Annotatef(err, "write status of region %d", r.RegionID)
	}
	logger.L().Debug("status_put", "region", r.RegionID, "state", r.State, "task_id", r.TaskID)
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT region_id, state, last_error, task_id, merged_task_ids, updated_at FROM _region_build_status ORDER BY region_id")
	if err != nil {
		return nil, errors.Annotate(err, "list status")
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var state string
		if err := rows.Scan(&r.RegionID, &state, &r.LastError, &r.TaskID, pq.Array(&r.MergedTaskIDs), &r.UpdatedAt); err != nil {
			return nil, errors.Annotate(err, "scan status")
		}
		r.State = State(state)
		out = append(out, r)
	}
	return out, errors.Trace(rows.Err())
}
