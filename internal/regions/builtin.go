package regions

import "github.com/juju/errors"

// 区域编号方案
// 背景：上游数据存在两套互不兼容的编号：联邦主体代码（47、78…）与城市 API 的领土 id（1、3138…）。
// 约束：进程内只使用一套，由 REGION_ID_SCHEME 决定，不做猜测或混用。
const (
	SchemeSubject = "subject"
	SchemeUrban   = "urban"
)

var subjectRegions = []Descriptor{
	{ID: 47, Name: "Ленинградская область", CRS: 32636},
	{ID: 78, Name: "Санкт-Петербург", CRS: 32636},
	{ID: 77, Name: "Москва", CRS: 32637},
	{ID: 34, Name: "Волгоградская область", CRS: 32638},
	{ID: 71, Name: "Тульская область", CRS: 32637},
	{ID: 55, Name: "Омская область", CRS: 32643},
	{ID: 23, Name: "Краснодарский край", CRS: 32637},
	{ID: 72, Name: "Тюменская область", CRS: 32642},
	{ID: 50, Name: "Московская область", CRS: 32637},
}

var urbanRegions = []Descriptor{
	{ID: 1, Name: "Ленинградская область", CRS: 32636},
	{ID: 3138, Name: "Санкт-Петербург", CRS: 32636},
	{ID: 3268, Name: "Москва", CRS: 32637},
	{ID: 3427, Name: "Волгоградская область", CRS: 32638},
	{ID: 3902, Name: "Тульская область", CRS: 32637},
	{ID: 4013, Name: "Омская область", CRS: 32643},
	{ID: 4437, Name: "Краснодарский край", CRS: 32637},
	{ID: 4882, Name: "Тюменская область", CRS: 32642},
	{ID: 5188, Name: "Московская область", CRS: 32637},
}

// Builtin：返回内置目录；空方案按 subject 处理
func Builtin(scheme string) (*Catalog, error) {
	switch scheme {
	case "", SchemeSubject:
		return New(subjectRegions)
	case SchemeUrban:
		return New(urbanRegions)
	}
	return nil, errors.NotSupportedf("region id scheme %q", scheme)
}
