package storage

import (
	"context"
	"sync"
)

// Memory is an in-process store; state is lost on exit.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Namespace(ns string) KV { return &memoryKV{m: m, ns: ns} }

func (m *Memory) Close() error { return nil }

type memoryKV struct {
	m  *Memory
	ns string
}

func (k *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	k.m.mu.RLock()
	defer k.m.mu.RUnlock()
	v, ok := k.m.data[k.ns][key]
	return v, ok, nil
}

func (k *memoryKV) Set(_ context.Context, key, value string) error {
	k.m.mu.Lock()
	defer k.m.mu.Unlock()
	if k.m.data[k.ns] == nil {
		k.m.data[k.ns] = make(map[string]string)
	}
	k.m.data[k.ns][key] = value
	return nil
}

func (k *memoryKV) Delete(_ context.Context, keys ...string) error {
	k.m.mu.Lock()
	defer k.m.mu.Unlock()
	for _, key := range keys {
		delete(k.m.data[k.ns], key)
	}
	return nil
}
