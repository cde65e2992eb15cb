package kv

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is a bounded in-process store. Least recently used keys are evicted
// once the capacity is reached.
type Memory struct {
	size int
	lru  *lru.Cache[string, string]
}

func NewMemory(size int) (*Memory, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Memory{
		size: size,
		lru:  c,
	}, nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.lru.Add(key, value)
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

func (m *Memory) Len() int { return m.lru.Len() }
