package internal

import "sync"

// Registry 在线连接表。锁只保护 map 操作，不会在网络 I/O 期间持有。
type Registry struct {
	mu    sync.RWMutex
	conns map[ConnID]*Connection
}

// NewRegistry 创建空的连接表
func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnID]*Connection)}
}

// Add 加入连接。同一 id 重复加入会覆盖旧值。
func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Remove 删除连接，返回是否确实存在
func (r *Registry) Remove(id ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Get 按 id 查找连接
func (r *Registry) Get(id ConnID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Snapshot 返回当前成员的副本，调用者可以在不持锁的情况下遍历
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		list = append(list, c)
	}
	return list
}

// Len 在线连接数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
