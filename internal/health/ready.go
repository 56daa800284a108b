package health

import (
	"sort"
	"sync"
)

// Readiness 就绪状态聚合：登记的各组件均为 true 时就绪
type Readiness struct {
	mu         sync.RWMutex
	components map[string]bool
}

func New() *Readiness { return &Readiness{components: map[string]bool{}} }

// Set 登记或更新组件就绪状态
func (r *Readiness) Set(component string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[component] = ready
}

// Ready 总体就绪；未登记任何组件时不就绪
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.components) == 0 {
		return false
	}
	for _, ok := range r.components {
		if !ok {
			return false
		}
	}
	return true
}

// Pending 尚未就绪的组件，按名称排序
func (r *Readiness) Pending() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, ok := range r.components {
		if !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
