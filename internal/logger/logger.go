// 包 logger：统一初始化与获取日志器，避免各模块重复配置；通过环境变量控制日志级别与输出格式
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// ParseLevel：将 LOG_LEVEL 文本映射为 slog 级别，未知值回退到 info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New：按给定输出、级别与格式构建日志器
// 约束：format 仅识别 json，其余均输出文本格式
func New(w io.Writer, lvl slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup：按环境变量初始化默认日志器，配置尚未读取时的回退路径
func Setup() *slog.Logger {
	return SetupWith(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// SetupWith：按给定级别与格式初始化默认日志器
// 背景：集中化日志配置，构建流水线与 HTTP 层共用同一输出
// 约束：输出目标固定为标准错误；不在此处管理文件句柄或外部聚合通道
func SetupWith(level, format string) *slog.Logger {
	l := New(os.Stderr, ParseLevel(level), format)
	Set(l)
	return l
}

// Set：替换进程级日志器（测试中用于静默或捕获输出）
func Set(l *slog.Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// L：获取默认日志器；若未初始化则回退到 Setup
func L() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		return Setup()
	}
	return l
}

// Region：附带区域维度的子日志器，构建各阶段日志统一携带 region 与 name
func Region(id int, name string) *slog.Logger {
	return L().With("region", id, "region_name", name)
}

// Discard：丢弃全部输出的日志器
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
