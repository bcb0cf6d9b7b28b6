package memory

import (
	"context"
	"sync"

	"dasa-hub/internal/repository"
)

type SettingsRepository struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{docs: make(map[string][]byte)}
}

var _ repository.SettingsRepository = (*SettingsRepository)(nil)

func (r *SettingsRepository) Load(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	raw, ok := r.docs[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (r *SettingsRepository) Save(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[key] = append([]byte(nil), value...)
	return nil
}
