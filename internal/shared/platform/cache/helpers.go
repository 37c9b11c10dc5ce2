package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AsyncCacheSet actualiza caché en background sin bloquear la respuesta.
func AsyncCacheSet(ctx context.Context, cache Cache, key string, value interface{}, ttl int, log *zap.Logger) {
	if cache == nil {
		return
	}

	go func() {
		// context.Background() a propósito: es una operación de "dispara y
		// olvida" y queremos que la caché se actualice aunque la petición
		// original ya haya sido cancelada.
		cacheCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		if err := cache.Set(cacheCtx, key, value, ttl); err != nil {
			log.Warn("Cache update failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// AsyncCacheDelete elimina de caché en background.
func AsyncCacheDelete(ctx context.Context, cache Cache, key string, log *zap.Logger) {
	if cache == nil {
		return
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		if err := cache.Delete(cacheCtx, key); err != nil {
			log.Warn("Cache deletion failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}
