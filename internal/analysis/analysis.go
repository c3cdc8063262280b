// 包 analysis：区域模型的分析协作方（领土选址评估、人口准则、人口框架与城市群）
// 背景：评分与框架算法不在本服务内实现，本服务只负责提供构建好的区域模型与投影后的待评估几何。
package analysis

import (
	"context"

	"popframe-api/internal/geo"
	"popframe-api/internal/model"

	"github.com/juju/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Result：单个待评估领土的评估结果
type Result struct {
	Territory          string  `json:"territory"`
	Score              int     `json:"score"`
	Interpretation     string  `json:"interpretation"`
	ClosestSettlement  string  `json:"closest_settlement"`
	ClosestSettlement1 *string `json:"closest_settlement1"`
	ClosestSettlement2 *string `json:"closest_settlement2"`
}

// CriterionResult：单个领土的人口准则结果
type CriterionResult struct {
	Project                  *string `json:"project"`
	AveragePopulationDensity float64 `json:"average_population_density"`
	AveragePopulationGrowth  float64 `json:"average_population_growth"`
	Score                    int     `json:"score"`
}

// Frames：城市群边界与带城市群归属状态的聚落
type Frames struct {
	Agglomerations *geojson.FeatureCollection `json:"agglomerations"`
	Towns          *geojson.FeatureCollection `json:"towns"`
}

// Evaluator：领土参数均已投影到模型 CRS
type Evaluator interface {
	Heartbeat(ctx context.Context) error
	EvaluateLocation(ctx context.Context, m *model.RegionModel, territory orb.Polygon) ([]Result, error)
	PopulationCriterion(ctx context.Context, m *model.RegionModel, territories []orb.Polygon) ([]CriterionResult, error)
	CityFrame(ctx context.Context, m *model.RegionModel) (*geojson.FeatureCollection, error)
	AgglomerationFrames(ctx context.Context, m *model.RegionModel) (*Frames, error)
	Agglomerations(ctx context.Context, m *model.RegionModel) (*geojson.FeatureCollection, error)
}

// Territory：校验 WGS84 多边形并投影到区域 CRS
// 约束：仅接受单个 Polygon；投影失败视为输入无效
func Territory(m *model.RegionModel, g orb.Geometry) (orb.Polygon, error) {
	poly, ok := g.(orb.Polygon)
	if !ok || len(poly) == 0 || len(poly[0]) < 4 {
		return nil, errors.NotValidf("territory geometry (want a polygon)")
	}
	projected, err := geo.Reproject(poly, m.CRS())
	if err != nil {
		return nil, errors.NewNotValid(err, "territory geometry")
	}
	return projected.(orb.Polygon), nil
}

// Evaluate：投影后交给协作方评估选址
func Evaluate(ctx context.Context, ev Evaluator, m *model.RegionModel, territory orb.Geometry) ([]Result, error) {
	poly, err := Territory(m, territory)
	if err != nil {
		return nil, err
	}
	return ev.EvaluateLocation(ctx, m, poly)
}

// Criterion：逐个投影后交给协作方计算人口准则；结果顺序与输入一致
func Criterion(ctx context.Context, ev Evaluator, m *model.RegionModel, territories []orb.Geometry) ([]CriterionResult, error) {
	if len(territories) == 0 {
		return nil, errors.NotValidf("empty territory list")
	}
	polys := make([]orb.Polygon, 0, len(territories))
	for i, g := range territories {
		p, err := Territory(m, g)
		if err != nil {
			return nil, errors.Annotatef(err, "territory %d", i)
		}
		polys = append(polys, p)
	}
	return ev.PopulationCriterion(ctx, m, polys)
}
