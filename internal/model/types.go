// 包 model：区域模型（边界、分级聚落、可达性矩阵、坐标系）及其组装与序列化
package model

import (
	"time"

	"github.com/paulmach/orb"
)

// Town：聚落记录
// 约束：PopulationSynthetic=true 表示上游缺失人口、数值为随机占位，不得当作真实人口数据使用。
type Town struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Point               orb.Point `json:"point"`
	Population          int       `json:"population"`
	PopulationSynthetic bool      `json:"population_synthetic"`
	TerritoryLevel      int       `json:"territory_level"`
	TerritoryType       string    `json:"territory_type,omitempty"`
	Level               int       `json:"level"`
	LevelName           string    `json:"level_name"`
}

// Matrix：某一交通方式下聚落间的通行成本表
// 背景：上游按 index（行）与 columns（列）分别给出 id；组装后两者顺序一致。
type Matrix struct {
	GraphType string      `json:"graph_type"`
	Index     []int64     `json:"index"`
	Columns   []int64     `json:"columns"`
	Values    [][]float64 `json:"values"`
}

// Empty：无行或无列
func (m Matrix) Empty() bool { return len(m.Index) == 0 || len(m.Columns) == 0 || len(m.Values) == 0 }

func (m Matrix) clone() Matrix {
	out := Matrix{
		GraphType: m.GraphType,
		Index:     append([]int64(nil), m.Index...),
		Columns:   append([]int64(nil), m.Columns...),
		Values:    make([][]float64, len(m.Values)),
	}
	for i, row := range m.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

// RegionModel：组装完成的区域模型，构造后不可变
// 约束：仅能由 Assemble 或 Decode 产生；访问器返回副本。
type RegionModel struct {
	regionID int
	name     string
	crs      int
	boundary orb.Geometry
	towns    []Town
	matrix   Matrix
	pos      map[int64]int
	builtAt  time.Time
}

func (m *RegionModel) RegionID() int      { return m.regionID }
func (m *RegionModel) Name() string       { return m.name }
func (m *RegionModel) CRS() int           { return m.crs }
func (m *RegionModel) BuiltAt() time.Time { return m.builtAt }
func (m *RegionModel) TownCount() int     { return len(m.towns) }

func (m *RegionModel) Boundary() orb.Geometry { return orb.Clone(m.boundary) }

func (m *RegionModel) Towns() []Town { return append([]Town(nil), m.towns...) }

func (m *RegionModel) Matrix() Matrix { return m.matrix.clone() }

// Travel：查询两聚落间的通行成本
func (m *RegionModel) Travel(from, to int64) (float64, bool) {
	i, ok := m.pos[from]
	if !ok {
		return 0, false
	}
	j, ok := m.pos[to]
	if !ok {
		return 0, false
	}
	return m.matrix.Values[i][j], true
}
