package service

import (
	"sync"

	"course_market_backend/internal/model"
)

// progressCache 进程内 (user, course) → 最近已知报名快照的读穿缓存。
// 只在本进程内共享；允许落后于其他写入方，由变更推送失效兜底。
// 不会比本进程自己的最后一次写更旧。
type progressCache struct {
	mu      sync.RWMutex
	entries map[string]model.Enrollment
}

func newProgressCache() *progressCache {
	return &progressCache{entries: make(map[string]model.Enrollment)}
}

func (c *progressCache) get(key string) (model.Enrollment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *progressCache) set(key string, e model.Enrollment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

func (c *progressCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
