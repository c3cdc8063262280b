package urban

import (
	"context"

	"popframe-api/internal/geo"
	"popframe-api/internal/logger"
	"popframe-api/internal/model"

	"github.com/juju/errors"
	"github.com/paulmach/orb/geojson"
)

// FetchTowns：获取区域内全部层级领土，取最深层级作为聚落集合
// 背景：领土树自上而下为区、市镇、居民点；最深层级即居民点。面状几何转换为代表点。
// 约束：
// - 无任何领土时返回 NotFound；
// - 缺少 territory_id 或几何的要素被跳过；最深层级全部被跳过同样视为 NotFound；
// - 缺少人口时按 [PopulationMin, PopulationMax) 均匀随机占位并置 PopulationSynthetic。
// 返回的聚落尚未分级（Level 为零值），分级由 levels.Filler 完成。
func (c *Client) FetchTowns(ctx context.Context, regionID int) ([]model.Town, error) {
	body, err := c.get(ctx, "urban_territories", c.allTerritoriesURL(regionID))
	if err != nil {
		if errors.Is(err, errors.NotFound) {
			return nil, errors.NotFoundf("towns for region %d", regionID)
		}
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, errors.Annotate(err, "decode territories")
	}
	deepest, found := 0, false
	for _, f := range fc.Features {
		if lvl, ok := geo.Int(f.Properties, "level"); ok && (!found || int(lvl) > deepest) {
			deepest, found = int(lvl), true
		}
	}
	if !found {
		return nil, errors.NotFoundf("towns for region %d", regionID)
	}
	l := logger.L()
	towns := make([]model.Town, 0, len(fc.Features))
	synthetic := 0
	for _, f := range fc.Features {
		if lvl, ok := geo.Int(f.Properties, "level"); !ok || int(lvl) != deepest {
			continue
		}
		id, ok := geo.Int(f.Properties, "territory_id")
		if !ok {
			l.Debug("town_skip", "region", regionID, "reason", "no_territory_id")
			continue
		}
		if f.Geometry == nil {
			l.Debug("town_skip", "region", regionID, "territory_id", id, "reason", "no_geometry")
			continue
		}
		pt, err := geo.RepresentativePoint(f.Geometry)
		if err != nil {
			l.Debug("town_skip", "region", regionID, "territory_id", id, "err", err)
			continue
		}
		t := model.Town{
			ID:             id,
			Name:           geo.Str(f.Properties, "name"),
			Point:          pt,
			TerritoryLevel: deepest,
			TerritoryType:  geo.Str(geo.Nested(f.Properties, "territory_type"), "name"),
		}
		if pop, ok := geo.Int(f.Properties, "population"); ok && pop >= 0 {
			t.Population = int(pop)
		} else {
			t.Population = PopulationMin + c.intn(PopulationMax-PopulationMin)
			t.PopulationSynthetic = true
			synthetic++
		}
		towns = append(towns, t)
	}
	if len(towns) == 0 {
		return nil, errors.NotFoundf("towns for region %d", regionID)
	}
	l.Debug("towns_loaded", "region", regionID, "level", deepest, "count", len(towns), "synthetic_population", synthetic)
	return towns, nil
}
