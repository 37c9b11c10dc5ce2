package mocks

import (
	"context"
	"encoding/json"
	"sync"

	sharedCache "github.com/davicafu/vigilia/internal/shared/platform/cache"
)

// DummyCache es un mock de caché en memoria, genérico y seguro para
// concurrencia. Guarda bytes JSON igual que Redis para que los tests
// vean exactamente la misma semántica de copia que producción.
type DummyCache struct {
	store map[string][]byte
	mu    sync.RWMutex
}

// Verificación estática para asegurar que implementa la interfaz compartida.
var _ sharedCache.Cache = (*DummyCache)(nil)

func NewDummyCache() *DummyCache {
	return &DummyCache{
		store: make(map[string][]byte),
	}
}

func (c *DummyCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.store[key]
	if !ok {
		return false, nil // cache miss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *DummyCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	c.store[key] = data
	return nil
}

func (c *DummyCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// SetForTest inserta un valor directamente, para preparar hits de caché.
func (c *DummyCache) SetForTest(key string, val interface{}) {
	_ = c.Set(context.Background(), key, val, 0)
}

// Contains comprueba si la clave está presente sin deserializar.
func (c *DummyCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.store[key]
	return ok
}
