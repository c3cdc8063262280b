// 包 geo：区域模型使用的几何工具（坐标系投影、代表点、GeoJSON 属性读取）
// 背景：上游几何统一为 WGS84（EPSG:4326）；模型内部几何必须位于区域的投影坐标系（米制）。
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// WGS84 为上游数据的地理坐标系
const WGS84 = 4326

const (
	webMercator = 3857

	wgsA  = 6378137.0
	wgsF  = 1 / 298.257223563
	utmK0 = 0.9996
	utmE0 = 500000.0
	utmN0 = 10000000.0
)

// Projection：按 EPSG 代码返回从 WGS84 出发的点投影函数
// 约束：支持 4326（恒等）、3857 以及 WGS84/UTM 北半球 326zz 与南半球 327zz；其余代码返回错误。
func Projection(epsg int) (orb.Projection, error) {
	switch {
	case epsg == WGS84:
		return func(p orb.Point) orb.Point { return p }, nil
	case epsg == webMercator:
		return project.WGS84.ToMercator, nil
	case epsg > 32600 && epsg <= 32660:
		return utm(epsg-32600, false), nil
	case epsg > 32700 && epsg <= 32760:
		return utm(epsg-32700, true), nil
	}
	return nil, fmt.Errorf("unsupported crs EPSG:%d", epsg)
}

// utm：横轴墨卡托正算（Snyder 级数展开，厘米级精度，适用于带内及邻带附近）
func utm(zone int, south bool) orb.Projection {
	e2 := wgsF * (2 - wgsF)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)
	lon0 := float64((zone-1)*6-180+3) * math.Pi / 180
	m1 := 1 - e2/4 - 3*e4/64 - 5*e6/256
	m2 := 3*e2/8 + 3*e4/32 + 45*e6/1024
	m3 := 15*e4/256 + 45*e6/1024
	m4 := 35 * e6 / 3072
	return func(p orb.Point) orb.Point {
		phi := p.Lat() * math.Pi / 180
		lam := p.Lon() * math.Pi / 180
		sin, cos := math.Sincos(phi)
		tan := math.Tan(phi)
		n := wgsA / math.Sqrt(1-e2*sin*sin)
		t := tan * tan
		c := ep2 * cos * cos
		a := cos * (lam - lon0)
		m := wgsA * (m1*phi - m2*math.Sin(2*phi) + m3*math.Sin(4*phi) - m4*math.Sin(6*phi))
		a2 := a * a
		x := utmK0*n*(a+(1-t+c)*a2*a/6+(5-18*t+t*t+72*c-58*ep2)*a2*a2*a/120) + utmE0
		y := utmK0 * (m + n*tan*(a2/2+(5-t+9*c+4*c*c)*a2*a2/24+(61-58*t+t*t+600*c-330*ep2)*a2*a2*a2/720))
		if south {
			y += utmN0
		}
		return orb.Point{x, y}
	}
}

// Reproject：将 WGS84 几何复制后投影到目标坐标系，原几何不被修改
// 约束：投影结果出现 NaN/Inf 视为失败（例如极区坐标或损坏的输入）
func Reproject(g orb.Geometry, epsg int) (orb.Geometry, error) {
	if g == nil {
		return nil, fmt.Errorf("nil geometry")
	}
	proj, err := Projection(epsg)
	if err != nil {
		return nil, err
	}
	out := project.Geometry(orb.Clone(g), proj)
	bad := false
	EachPoint(out, func(p orb.Point) {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			bad = true
		}
	})
	if bad {
		return nil, fmt.Errorf("non-finite coordinates after projection to EPSG:%d", epsg)
	}
	return out, nil
}

// EachPoint：遍历几何中的全部顶点
func EachPoint(g orb.Geometry, fn func(orb.Point)) {
	switch v := g.(type) {
	case orb.Point:
		fn(v)
	case orb.MultiPoint:
		for _, p := range v {
			fn(p)
		}
	case orb.LineString:
		for _, p := range v {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range v {
			EachPoint(ls, fn)
		}
	case orb.Ring:
		for _, p := range v {
			fn(p)
		}
	case orb.Polygon:
		for _, r := range v {
			EachPoint(r, fn)
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			EachPoint(poly, fn)
		}
	case orb.Collection:
		for _, c := range v {
			EachPoint(c, fn)
		}
	case orb.Bound:
		EachPoint(v.ToPolygon(), fn)
	}
}
