package ws

import "sync"

// Registry 记录身份到实时连接的映射，用于与房间无关的定向推送。
// 同一身份以先注册者为准，不会覆盖仍在使用的旧连接。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]string
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]string)} }

// Register 仅在身份尚未登记时写入，返回是否写入成功。
func (r *Registry) Register(identity, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[identity]; ok {
		return false
	}
	r.conns[identity] = connID
	return true
}

// Unregister 删除指向该连接的身份，线性扫描即可。
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for identity, id := range r.conns {
		if id == connID {
			delete(r.conns, identity)
			return
		}
	}
}

func (r *Registry) Lookup(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.conns[identity]
	return id, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
