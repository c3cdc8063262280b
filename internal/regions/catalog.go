// 包 regions：区域目录（id → 名称、目标投影坐标系），进程启动时构建一次，此后只读
package regions

import (
	"os"
	"strconv"
	"strings"

	"popframe-api/internal/geo"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Descriptor：单个区域的静态描述；CRS 为 EPSG 代码（投影坐标系，用于米制几何运算）
type Descriptor struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	CRS  int    `yaml:"crs" json:"crs"`
}

// Catalog：不可变区域目录
// 约束：构建后不提供任何修改方法；All 返回副本，调用方修改不影响目录本身
type Catalog struct {
	list []Descriptor
	byID map[int]int
}

// New：校验并构建目录
// 约束：id 唯一且为正；名称非空且唯一（缓存文件名由名称派生，重名会导致两个区域共用同一产物）；
// CRS 必须是可投影的坐标系，配置错误在启动时暴露而不是在每次组装时失败
func New(ds []Descriptor) (*Catalog, error) {
	c := &Catalog{list: make([]Descriptor, 0, len(ds)), byID: make(map[int]int, len(ds))}
	names := make(map[string]int, len(ds))
	for _, d := range ds {
		d.Name = strings.TrimSpace(d.Name)
		if d.ID <= 0 {
			return nil, errors.NotValidf("region id %d", d.ID)
		}
		if d.Name == "" {
			return nil, errors.NotValidf("empty name for region %d", d.ID)
		}
		if d.CRS <= 0 {
			return nil, errors.NotValidf("crs %d for region %d", d.CRS, d.ID)
		}
		if _, err := geo.Projection(d.CRS); err != nil {
			return nil, errors.NewNotValid(err, "region "+strconv.Itoa(d.ID))
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, errors.AlreadyExistsf("region %d", d.ID)
		}
		if other, dup := names[d.Name]; dup {
			return nil, errors.AlreadyExistsf("region name %q (ids %d and %d)", d.Name, other, d.ID)
		}
		names[d.Name] = d.ID
		c.byID[d.ID] = len(c.list)
		c.list = append(c.list, d)
	}
	return c, nil
}

// Resolve：按 id 查找；未知 id 返回 NotFound
func (c *Catalog) Resolve(id int) (Descriptor, error) {
	i, ok := c.byID[id]
	if !ok {
		return Descriptor{}, errors.NotFoundf("region %d", id)
	}
	return c.list[i], nil
}

// All：按配置顺序返回全部区域
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.list))
	copy(out, c.list)
	return out
}

func (c *Catalog) Len() int { return len(c.list) }

type catalogFile struct {
	Regions []Descriptor `yaml:"regions"`
}

// LoadFile：从 YAML 文件读取目录，格式为 regions: [{id, name, crs}, ...]
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "read region catalog %s", path)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Annotatef(err, "parse region catalog %s", path)
	}
	if len(f.Regions) == 0 {
		return nil, errors.NotValidf("region catalog %s without regions", path)
	}
	return New(f.Regions)
}
