// 包 levels：聚落分级（LevelFiller）
// 背景：上游只给出领土层级，不区分城市规模；分析侧需要按人口规模划分的聚落等级。
// 约束：纯函数式转换，不修改入参切片，不做任何 IO。
package levels

import (
	"sort"

	"popframe-api/internal/model"
)

// Filler：为每条聚落记录赋予层级
type Filler interface {
	Fill(towns []model.Town) ([]model.Town, error)
}

// FillerFunc：函数适配器，便于测试与外部实现接入
type FillerFunc func([]model.Town) ([]model.Town, error)

func (f FillerFunc) Fill(towns []model.Town) ([]model.Town, error) { return f(towns) }

// Class：人口阈值分级，MinPopulation 为下界（含）
type Class struct {
	Level         int
	Name          string
	MinPopulation int
}

// DefaultClasses：城镇规划常用的十级聚落划分，自上而下人口递减
var DefaultClasses = []Class{
	{Level: 1, Name: "Сверхкрупный город", MinPopulation: 3000000},
	{Level: 2, Name: "Крупнейший город", MinPopulation: 1000000},
	{Level: 3, Name: "Крупный город", MinPopulation: 250000},
	{Level: 4, Name: "Большой город", MinPopulation: 100000},
	{Level: 5, Name: "Средний город", MinPopulation: 50000},
	{Level: 6, Name: "Малый город", MinPopulation: 5000},
	{Level: 7, Name: "Крупное сельское поселение", MinPopulation: 3000},
	{Level: 8, Name: "Большое сельское поселение", MinPopulation: 1000},
	{Level: 9, Name: "Среднее сельское поселение", MinPopulation: 200},
	{Level: 10, Name: "Малое сельское поселение", MinPopulation: 0},
}

// PopulationFiller：按人口阈值分级的默认实现
type PopulationFiller struct {
	classes []Class
}

// NewPopulationFiller：classes 为空时使用 DefaultClasses；内部按阈值降序排序
func NewPopulationFiller(classes []Class) *PopulationFiller {
	if len(classes) == 0 {
		classes = DefaultClasses
	}
	cs := append([]Class(nil), classes...)
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].MinPopulation > cs[j].MinPopulation })
	return &PopulationFiller{classes: cs}
}

func (f *PopulationFiller) Fill(towns []model.Town) ([]model.Town, error) {
	out := make([]model.Town, len(towns))
	for i, t := range towns {
		c := f.classify(t.Population)
		t.Level = c.Level
		t.LevelName = c.Name
		out[i] = t
	}
	return out, nil
}

func (f *PopulationFiller) classify(pop int) Class {
	for _, c := range f.classes {
		if pop >= c.MinPopulation {
			return c
		}
	}
	return f.classes[len(f.classes)-1]
}
