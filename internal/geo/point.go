package geo

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// RepresentativePoint：返回保证落在面内的一个点，用于把聚落面转换为点
// 背景：凹多边形或带洞多边形的质心可能落在面外，不能直接当作聚落位置。
// 约束：质心在面内时直接返回质心；否则在包围盒中线上做水平扫描，取最宽内部区段的中点。
// 多面取面积最大的部分；点与多点原样返回首点。
func RepresentativePoint(g orb.Geometry) (orb.Point, error) {
	switch v := g.(type) {
	case orb.Point:
		return v, nil
	case orb.MultiPoint:
		if len(v) == 0 {
			return orb.Point{}, fmt.Errorf("empty multipoint")
		}
		return v[0], nil
	case orb.Polygon:
		return polygonPoint(v)
	case orb.MultiPolygon:
		var best orb.Polygon
		bestArea := -1.0
		for _, p := range v {
			if a := math.Abs(planar.Area(p)); a > bestArea {
				best, bestArea = p, a
			}
		}
		if best == nil {
			return orb.Point{}, fmt.Errorf("empty multipolygon")
		}
		return polygonPoint(best)
	case nil:
		return orb.Point{}, fmt.Errorf("nil geometry")
	}
	return orb.Point{}, fmt.Errorf("unsupported geometry %s", g.GeoJSONType())
}

func polygonPoint(p orb.Polygon) (orb.Point, error) {
	if len(p) == 0 || len(p[0]) == 0 {
		return orb.Point{}, fmt.Errorf("empty polygon")
	}
	if c, area := planar.CentroidArea(p); area != 0 && planar.PolygonContains(p, c) {
		return c, nil
	}
	b := p.Bound()
	y := (b.Min.Y() + b.Max.Y()) / 2
	var xs []float64
	for _, ring := range p {
		for i := 0; i < len(ring); i++ {
			a := ring[i]
			c := ring[(i+1)%len(ring)]
			if (a.Y() > y) != (c.Y() > y) {
				xs = append(xs, a.X()+(y-a.Y())*(c.X()-a.X())/(c.Y()-a.Y()))
			}
		}
	}
	sort.Float64s(xs)
	bestW := -1.0
	var out orb.Point
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > bestW {
			bestW = w
			out = orb.Point{(xs[i] + xs[i+1]) / 2, y}
		}
	}
	if bestW < 0 {
		// 退化面（零高度）：退回外环首点
		return p[0][0], nil
	}
	return out, nil
}
