// 包 cache：区域模型的持久化产物与进程内缓存
// 背景：区域是否"可用"仅由产物文件是否存在决定，不另设标记位
package cache

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"popframe-api/internal/logger"
	"popframe-api/internal/metrics"
	"popframe-api/internal/model"
	"popframe-api/internal/regions"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/juju/errors"
)

// Ext：产物文件后缀
const Ext = ".model.json.gz"

// Store：以数据目录为根的模型缓存
// 约束：同一区域的写入由构建编排器串行化；此处只保证不会出现写到一半的最终文件
type Store struct {
	dir     string
	catalog *regions.Catalog
	lru     *expirable.LRU[int, *model.RegionModel]
}

// NewMemory：已解码模型的进程内缓存（容量 + TTL）
// 背景：评估接口在短周期内重复读取同一区域，避免每次解压与反序列化整个产物
// 约束：size <= 0 返回 nil，即不做内存缓存
func NewMemory(size int, ttl time.Duration) *expirable.LRU[int, *model.RegionModel] {
	if size <= 0 {
		return nil
	}
	return expirable.NewLRU[int, *model.RegionModel](size, nil, ttl)
}

// New：创建缓存并确保数据目录存在；lru 为 nil 时不做内存缓存
// 约束：目录中任意两个区域的产物文件名必须不同，否则返回 AlreadyExists
func New(dir string, catalog *regions.Catalog, lru *expirable.LRU[int, *model.RegionModel]) (*Store, error) {
	owners := make(map[string]int, catalog.Len())
	for _, d := range catalog.All() {
		fn := FileName(d)
		if other, dup := owners[fn]; dup {
			return nil, errors.AlreadyExistsf("artifact file %q (regions %d and %d)", fn, other, d.ID)
		}
		owners[fn] = d.ID
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &CacheIOError{Op: "mkdir", Path: dir, Err: err}
	}
	logger.L().Debug("model_cache_init", "dir", dir, "regions", catalog.Len(), "memory", lru != nil)
	return &Store{dir: dir, catalog: catalog, lru: lru}, nil
}

// Dir：数据目录
func (s *Store) Dir() string { return s.dir }

// Path：区域产物的最终路径；未知区域返回 NotFound
func (s *Store) Path(id int) (string, error) {
	d, err := s.catalog.Resolve(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, FileName(d)), nil
}

// FileName：由显示名称生成文件名；名称清洗后为空时退回区域 ID
func FileName(d regions.Descriptor) string {
	name := sanitize(d.Name)
	if name == "" {
		name = strconv.Itoa(d.ID)
	}
	return name + Ext
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), ".")
}

// Exists：调用时刻产物文件是否存在
func (s *Store) Exists(id int) bool {
	p, err := s.Path(id)
	if err != nil {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

// Load：读取并解码产物，命中内存缓存时不访问磁盘
// 约束：文件缺失或内容损坏均返回 CacheIOError
func (s *Store) Load(id int) (*model.RegionModel, error) {
	if s.lru != nil {
		if m, ok := s.lru.Get(id); ok && s.Exists(id) {
			metrics.ModelCacheHitsTotal.Inc()
			return m, nil
		}
	}
	metrics.ModelCacheMissesTotal.Inc()
	p, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, &CacheIOError{Op: "open", Path: p, Err: err}
	}
	defer f.Close()
	m, err := model.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, &CacheIOError{Op: "decode", Path: p, Err: err}
	}
	if m.RegionID() != id {
		return nil, &CacheIOError{Op: "decode", Path: p, Err: errors.NotValidf("artifact for region %d", m.RegionID())}
	}
	if s.lru != nil {
		s.lru.Add(id, m)
	}
	logger.L().Debug("model_cache_load", "region", id, "path", p, "towns", m.TownCount())
	return m, nil
}

// Store：写入同目录临时文件后重命名为最终文件名
func (s *Store) Store(id int, m *model.RegionModel) error {
	p, err := s.Path(id)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return &CacheIOError{Op: "create", Path: p, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &CacheIOError{Op: op, Path: p, Err: err}
	}
	w := bufio.NewWriter(tmp)
	if err := model.Encode(w, m); err != nil {
		return fail("encode", err)
	}
	if err := w.Flush(); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	st, err := tmp.Stat()
	if err != nil {
		return fail("stat", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &CacheIOError{Op: "close", Path: p, Err: err}
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return &CacheIOError{Op: "rename", Path: p, Err: err}
	}
	s.forget(id)
	metrics.ArtifactBytes.WithLabelValues(strconv.Itoa(id)).Set(float64(st.Size()))
	logger.L().Info("model_cache_store", "region", id, "path", p, "bytes", st.Size())
	return nil
}

// Invalidate：删除产物；文件不存在视为成功
func (s *Store) Invalidate(id int) error {
	p, err := s.Path(id)
	if err != nil {
		return err
	}
	s.forget(id)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return &CacheIOError{Op: "remove", Path: p, Err: err}
	}
	metrics.ArtifactBytes.DeleteLabelValues(strconv.Itoa(id))
	logger.L().Info("model_cache_invalidate", "region", id, "path", p)
	return nil
}

func (s *Store) forget(id int) {
	if s.lru != nil {
		s.lru.Remove(id)
	}
}
