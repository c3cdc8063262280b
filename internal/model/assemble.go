package model

import (
	"fmt"
	"sort"
	"time"

	"popframe-api/internal/geo"
	"popframe-api/internal/regions"

	"github.com/paulmach/orb"
)

// Assemble：把 WGS84 边界、分级聚落与可达性矩阵组装为区域模型
// 背景：三路上游数据彼此独立获取，只有在此处一并校验通过才允许形成模型。
// 约束：
// - 矩阵行、列的 id 集合都必须与聚落 id 集合完全相等（不允许重复 id）；
// - 全部几何投影到 desc.CRS，任一几何投影失败即整体失败；
// - 输出矩阵的列顺序重排为与行一致，方阵下标即聚落在 Index 中的位置。
func Assemble(desc regions.Descriptor, boundary orb.Geometry, towns []Town, mx Matrix) (*RegionModel, error) {
	return assemble(desc, boundary, towns, mx, time.Now().UTC())
}

func assemble(desc regions.Descriptor, boundary orb.Geometry, towns []Town, mx Matrix, builtAt time.Time) (*RegionModel, error) {
	rid := desc.ID
	switch boundary.(type) {
	case orb.Polygon, orb.MultiPolygon:
	case nil:
		return nil, assemblyErr(rid, nil, "missing boundary")
	default:
		return nil, assemblyErr(rid, nil, "boundary must be a polygon or multipolygon, got %s", boundary.GeoJSONType())
	}
	if len(towns) == 0 {
		return nil, assemblyErr(rid, nil, "no towns")
	}
	if _, err := geo.Projection(desc.CRS); err != nil {
		return nil, assemblyErr(rid, err, "target crs")
	}

	townIDs := make(map[int64]struct{}, len(towns))
	for _, t := range towns {
		if _, dup := townIDs[t.ID]; dup {
			return nil, assemblyErr(rid, nil, "duplicate town id %d", t.ID)
		}
		townIDs[t.ID] = struct{}{}
	}
	norm, pos, err := normalizeMatrix(mx, townIDs)
	if err != nil {
		return nil, assemblyErr(rid, err, "accessibility matrix")
	}

	pb, err := geo.Reproject(boundary, desc.CRS)
	if err != nil {
		return nil, assemblyErr(rid, err, "reproject boundary")
	}
	out := make([]Town, len(towns))
	for i, t := range towns {
		pg, err := geo.Reproject(t.Point, desc.CRS)
		if err != nil {
			return nil, assemblyErr(rid, err, "reproject town %d", t.ID)
		}
		t.Point = pg.(orb.Point)
		out[i] = t
	}
	return &RegionModel{
		regionID: rid,
		name:     desc.Name,
		crs:      desc.CRS,
		boundary: pb,
		towns:    out,
		matrix:   norm,
		pos:      pos,
		builtAt:  builtAt,
	}, nil
}

// normalizeMatrix：校验矩阵形状与 id 集合，并按行顺序重排列
func normalizeMatrix(mx Matrix, townIDs map[int64]struct{}) (Matrix, map[int64]int, error) {
	if mx.Empty() {
		return Matrix{}, nil, fmt.Errorf("empty matrix")
	}
	if len(mx.Values) != len(mx.Index) {
		return Matrix{}, nil, fmt.Errorf("%d rows for %d index ids", len(mx.Values), len(mx.Index))
	}
	for i, row := range mx.Values {
		if len(row) != len(mx.Columns) {
			return Matrix{}, nil, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(mx.Columns))
		}
	}
	rowPos, err := positions(mx.Index, "index")
	if err != nil {
		return Matrix{}, nil, err
	}
	colPos, err := positions(mx.Columns, "columns")
	if err != nil {
		return Matrix{}, nil, err
	}
	if err := sameSet(rowPos, townIDs, "index"); err != nil {
		return Matrix{}, nil, err
	}
	if err := sameSet(colPos, townIDs, "columns"); err != nil {
		return Matrix{}, nil, err
	}
	out := Matrix{
		GraphType: mx.GraphType,
		Index:     append([]int64(nil), mx.Index...),
		Columns:   append([]int64(nil), mx.Index...),
		Values:    make([][]float64, len(mx.Index)),
	}
	for i, row := range mx.Values {
		nr := make([]float64, len(mx.Index))
		for j, id := range mx.Index {
			nr[j] = row[colPos[id]]
		}
		out.Values[i] = nr
	}
	return out, rowPos, nil
}

func positions(ids []int64, axis string) (map[int64]int, error) {
	pos := make(map[int64]int, len(ids))
	for i, id := range ids {
		if _, dup := pos[id]; dup {
			return nil, fmt.Errorf("duplicate id %d in %s", id, axis)
		}
		pos[id] = i
	}
	return pos, nil
}

func sameSet(got map[int64]int, want map[int64]struct{}, axis string) error {
	var missing, extra []int64
	for id := range want {
		if _, ok := got[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			extra = append(extra, id)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return fmt.Errorf("%s ids differ from town ids: %d missing %v, %d unknown %v",
		axis, len(missing), head(missing), len(extra), head(extra))
}

func head(ids []int64) []int64 {
	if len(ids) > 5 {
		return ids[:5]
	}
	return ids
}
