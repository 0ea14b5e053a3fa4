package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"loan-console/internal/common/config"
	"loan-console/internal/common/database"
)

// Persisted client-state keys.
const (
	KeyAccessToken      = "access_token"
	KeySidebarCollapsed = "sidebar_collapsed"
)

// ErrCorruptState is returned by FileStore.Get when the state file cannot be
// decoded. The next Set or Delete replaces the file.
var ErrCorruptState = stderrors.New("session state is corrupt")

// Store is the durable key-value storage behind the session. Get reports
// ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NewStore builds the store selected by cfg.Store. The returned closer
// releases any connection the store holds.
func NewStore(cfg config.SessionConfig) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store {
	case "memory":
		return NewMemoryStore(), noop, nil
	case "file", "":
		path := cfg.Path
		if path == "" {
			path = config.DefaultSessionPath()
		}
		return NewFileStore(path), noop, nil
	case "redis":
		client, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// ==========================
// Memory
// ==========================

// MemoryStore keeps state for the life of the process.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.writes++
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.writes++
	return nil
}

// Writes counts Set and Delete calls.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ==========================
// File
// ==========================

// FileStore keeps state in a small JSON object on disk, re-read on every
// Get so separate console invocations share it.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.loadForWrite()
	if err != nil {
		return err
	}
	data[key] = value
	return f.save(data)
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if stderrors.Is(err, ErrCorruptState) {
		return f.save(map[string]string{})
	}
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return f.save(data)
}

func (f *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if stderrors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorruptState, f.path, err)
	}
	return data, nil
}

// loadForWrite starts from an empty state when the file is undecodable.
func (f *FileStore) loadForWrite() (map[string]string, error) {
	data, err := f.load()
	if stderrors.Is(err, ErrCorruptState) {
		return map[string]string{}, nil
	}
	return data, err
}

// save writes through a temp file so a crash never leaves a torn file.
func (f *FileStore) save(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// ==========================
// Redis
// ==========================

// RedisStore keeps state in Redis under the configured key prefix.
type RedisStore struct {
	client *database.RedisClient
}

func NewRedisStore(client *database.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key)
	if stderrors.Is(err, database.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
