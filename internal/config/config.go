// 包 config：集中读取服务与构建流水线的环境变量配置
// 背景：入口与构建工具共用同一份配置读取，避免两处默认值漂移
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"popframe-api/internal/regions"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
)

type Config struct {
	Addr     string
	APIBase  string
	DataDir  string
	LogLevel  string
	LogFormat string

	UrbanAPIURL  string
	MatrixAPIURL string
	GraphType    string
	HTTPTimeout  time.Duration

	BuildTimeout     time.Duration
	BuildParallelism int
	BuildOnStart     bool
	RebuildInterval  time.Duration
	ModelCacheTTL    time.Duration
	ModelCacheSize   int
	StatusStore      string
	RedisLockEnabled bool
	RedisLockTTL     time.Duration

	AnalysisEndpoint string
	CORSOrigin       string
	RateLimitEnabled bool
	RateLimitQPS     int

	RegionIDScheme string
	RegionsFile    string
}

// LoadDotenv：依次加载 .env 与 data/env/.env，文件缺失时静默跳过
func LoadDotenv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// FromEnv：读取环境变量并填充缺省值
// 约束：只做类型解析，不校验上游地址可达性；数值解析失败时回退默认值
func FromEnv() Config {
	return Config{
		Addr:     str("ADDR", ":8000"),
		APIBase:  strings.TrimRight(os.Getenv("API_BASE"), "/"),
		DataDir:  str("DATA_DIR", filepath.Join("data", "models")),
		LogLevel:  str("LOG_LEVEL", "info"),
		LogFormat: str("LOG_FORMAT", "text"),

		UrbanAPIURL:  strings.TrimRight(os.Getenv("URBAN_API_URL"), "/"),
		MatrixAPIURL: strings.TrimRight(os.Getenv("MATRIX_API_URL"), "/"),
		GraphType:    str("GRAPH_TYPE", "drive"),
		HTTPTimeout:  seconds("HTTP_TIMEOUT_S", 120),

		BuildTimeout:     seconds("BUILD_TIMEOUT_S", 1800),
		BuildParallelism: integer("BUILD_PARALLELISM", 2),
		BuildOnStart:     boolean("BUILD_ON_START", false),
		RebuildInterval:  time.Duration(integer("REBUILD_INTERVAL_H", 0)) * time.Hour,
		ModelCacheTTL:    seconds("MODEL_CACHE_TTL_S", 3600),
		ModelCacheSize:   integer("MODEL_CACHE_SIZE", 4),
		StatusStore:      strings.ToLower(str("STATUS_STORE", "memory")),
		RedisLockEnabled: boolean("REDIS_LOCK_ENABLED", true),
		RedisLockTTL:     seconds("REDIS_LOCK_TTL_S", 3600),

		AnalysisEndpoint: strings.TrimRight(os.Getenv("ANALYSIS_ENDPOINT"), "/"),
		CORSOrigin:       str("CORS_ALLOWED_ORIGIN", "*"),
		RateLimitEnabled: boolean("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:     integer("RATE_LIMIT_QPS", 50),

		RegionIDScheme: strings.ToLower(os.Getenv("REGION_ID_SCHEME")),
		RegionsFile:    os.Getenv("REGIONS_FILE"),
	}
}

// Validate：启动前检查构建流水线必需项
func (c Config) Validate() error {
	if c.UrbanAPIURL == "" {
		return errors.NotValidf("URBAN_API_URL is empty;")
	}
	if c.MatrixAPIURL == "" {
		return errors.NotValidf("MATRIX_API_URL is empty;")
	}
	if c.DataDir == "" {
		return errors.NotValidf("DATA_DIR is empty;")
	}
	switch c.StatusStore {
	case "memory", "postgres":
	default:
		return errors.NotSupportedf("STATUS_STORE %q", c.StatusStore)
	}
	return nil
}

// Catalog：REGIONS_FILE 优先，其次按 REGION_ID_SCHEME 选择内置目录
func (c Config) Catalog() (*regions.Catalog, error) {
	if c.RegionsFile != "" {
		return regions.LoadFile(c.RegionsFile)
	}
	return regions.Builtin(c.RegionIDScheme)
}

func str(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func integer(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func seconds(k string, def int) time.Duration {
	return time.Duration(integer(k, def)) * time.Second
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
