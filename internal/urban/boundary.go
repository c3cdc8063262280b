package urban

import (
	"context"

	"github.com/juju/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type territoryResponse struct {
	TerritoryID int               `json:"territory_id"`
	Name        string            `json:"name"`
	Geometry    *geojson.Geometry `json:"geometry"`
}

// FetchBoundary：获取区域边界（WGS84 面或多面）
// 约束：领土不存在或几何为空时返回 NotFound。
func (c *Client) FetchBoundary(ctx context.Context, regionID int) (orb.Geometry, error) {
	body, err := c.get(ctx, "urban_boundary", c.territoryURL(regionID))
	if err != nil {
		if errors.Is(err, errors.NotFound) {
			return nil, errors.NotFoundf("boundary for region %d", regionID)
		}
		return nil, err
	}
	var tr territoryResponse
	if err := decode(body, &tr, "territory"); err != nil {
		return nil, err
	}
	if tr.Geometry == nil || tr.Geometry.Geometry() == nil {
		return nil, errors.NotFoundf("boundary for region %d", regionID)
	}
	g := tr.Geometry.Geometry()
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil, errors.NotFoundf("boundary for region %d", regionID)
		}
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil, errors.NotFoundf("boundary for region %d", regionID)
		}
	default:
		return nil, errors.NotValidf("boundary geometry %s for region %d", g.GeoJSONType(), regionID)
	}
	return g, nil
}
