package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps every namespace in one JSON document on disk. It is meant for
// the terminal client, where one process owns the file at a time.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &File{path: path}, nil
}

func (f *File) Namespace(ns string) KV { return &fileKV{f: f, ns: ns} }

func (f *File) Close() error { return nil }

func (f *File) load() (map[string]map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	doc := map[string]map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return doc, nil
}

// save writes via a temp file and rename so a crash never leaves a torn file.
func (f *File) save(doc map[string]map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

type fileKV struct {
	f  *File
	ns string
}

func (k *fileKV) Get(_ context.Context, key string) (string, bool, error) {
	k.f.mu.Lock()
	defer k.f.mu.Unlock()
	doc, err := k.f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[k.ns][key]
	return v, ok, nil
}

func (k *fileKV) Set(_ context.Context, key, value string) error {
	k.f.mu.Lock()
	defer k.f.mu.Unlock()
	doc, err := k.f.load()
	if err != nil {
		return err
	}
	if doc[k.ns] == nil {
		doc[k.ns] = map[string]string{}
	}
	doc[k.ns][key] = value
	return k.f.save(doc)
}

func (k *fileKV) Delete(_ context.Context, keys ...string) error {
	k.f.mu.Lock()
	defer k.f.mu.Unlock()
	doc, err := k.f.load()
	if err != nil {
		return err
	}
	entries, ok := doc[k.ns]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(entries, key)
	}
	if len(entries) == 0 {
		delete(doc, k.ns)
	}
	return k.f.save(doc)
}
