package model

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb/geojson"
)

// ArtifactVersion：产物格式版本；读取到其他版本视为不可用（需强制重建）
const ArtifactVersion = 1

// artifact：持久化结构（gzip 压缩的 JSON），包含完整模型
type artifact struct {
	Version  int               `json:"version"`
	RegionID int               `json:"region_id"`
	Name     string            `json:"name"`
	CRS      int               `json:"crs"`
	BuiltAt  time.Time         `json:"built_at"`
	Boundary *geojson.Geometry `json:"boundary"`
	Towns    []Town            `json:"towns"`
	Matrix   Matrix            `json:"matrix"`
}

// Encode：序列化模型；相同模型输出字节一致（gzip 头不写入时间戳）
func Encode(w io.Writer, m *RegionModel) error {
	zw := gzip.NewWriter(w)
	a := artifact{
		Version:  ArtifactVersion,
		RegionID: m.regionID,
		Name:     m.name,
		CRS:      m.crs,
		BuiltAt:  m.builtAt,
		Boundary: geojson.NewGeometry(m.boundary),
		Towns:    m.towns,
		Matrix:   m.matrix,
	}
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Decode：反序列化并重新校验 id 集合，损坏或被截断的产物返回错误
func Decode(r io.Reader) (*RegionModel, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var a artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, err
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("artifact version %d, want %d", a.Version, ArtifactVersion)
	}
	if a.Boundary == nil || a.Boundary.Geometry() == nil {
		return nil, fmt.Errorf("artifact without boundary")
	}
	ids := make(map[int64]struct{}, len(a.Towns))
	for _, t := range a.Towns {
		ids[t.ID] = struct{}{}
	}
	if len(ids) != len(a.Towns) || len(ids) == 0 {
		return nil, fmt.Errorf("artifact town ids are empty or duplicated")
	}
	norm, pos, err := normalizeMatrix(a.Matrix, ids)
	if err != nil {
		return nil, err
	}
	return &RegionModel{
		regionID: a.RegionID,
		name:     a.Name,
		crs:      a.CRS,
		boundary: a.Boundary.Geometry(),
		towns:    a.Towns,
		matrix:   norm,
		pos:      pos,
		builtAt:  a.BuiltAt,
	}, nil
}
