package geo

import (
	"encoding/json"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// 属性读取：上游对数值字段的编码不统一（数字、字符串、null 均出现过），这里统一容错

// Int：读取整数属性，缺失或无法解析时 ok=false
func Int(p geojson.Properties, key string) (int64, bool) {
	switch v := p[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Str：读取字符串属性
func Str(p geojson.Properties, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Nested：读取嵌套对象属性（如 territory_type: {id, name}）
func Nested(p geojson.Properties, key string) geojson.Properties {
	if m, ok := p[key].(map[string]interface{}); ok {
		return geojson.Properties(m)
	}
	return nil
}
