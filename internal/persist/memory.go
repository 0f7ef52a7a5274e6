package persist

import (
	"context"
	"strconv"
	"sync"
)

// MemoryKV is an in-process KV used by tests and by the --ephemeral dev
// mode. Same visible semantics as the Redis commands it mirrors.
type MemoryKV struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryKV {
	return &MemoryKV{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.strings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	return nil
}

func (m *MemoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.strings, k)
		delete(m.hashes, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *MemoryKV) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrBy(ctx, key, 1)
}

func (m *MemoryKV) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, _ := strconv.ParseInt(m.strings[key], 10, 64)
	cur += delta
	m.strings[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *MemoryKV) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryKV) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *MemoryKV) HDel(_ context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	return nil
}

func (m *MemoryKV) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	for _, mem := range members {
		s[mem] = struct{}{}
	}
	return nil
}

func (m *MemoryKV) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range members {
		delete(m.sets[key], mem)
	}
	return nil
}

func (m *MemoryKV) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[key]))
	for mem := range m.sets[key] {
		out = append(out, mem)
	}
	return out, nil
}

// Pipelined applies the batch under a single mutex hold, which gives the
// same all-or-nothing visibility as a Redis MULTI/EXEC.
func (m *MemoryKV) Pipelined(_ context.Context, fn func(Pipe)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&memoryPipe{m: m})
	return nil
}

// memoryPipe writes straight into the maps; the caller holds the mutex.
type memoryPipe struct {
	m *MemoryKV
}

func (p *memoryPipe) Set(key, value string) { p.m.strings[key] = value }

func (p *memoryPipe) Del(keys ...string) {
	for _, k := range keys {
		delete(p.m.strings, k)
		delete(p.m.hashes, k)
		delete(p.m.sets, k)
	}
}

func (p *memoryPipe) HSet(key string, fields map[string]string) {
	h, ok := p.m.hashes[key]
	if !ok {
		h = make(map[string]string)
		p.m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

func (p *memoryPipe) HDel(key string, fields ...string) {
	for _, f := range fields {
		delete(p.m.hashes[key], f)
	}
}

func (p *memoryPipe) SAdd(key string, members ...string) {
	s, ok := p.m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		p.m.sets[key] = s
	}
	for _, mem := range members {
		s[mem] = struct{}{}
	}
}

func (p *memoryPipe) SRem(key string, members ...string) {
	for _, mem := range members {
		delete(p.m.sets[key], mem)
	}
}

func (m *MemoryKV) Close() error { return nil }
