package cache

import "fmt"

// CacheIOError：产物读写失败（不可读、缺失、写入或重命名失败）
type CacheIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("model cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }
