package events

import (
	"context"
	"sync"

	sharedBus "github.com/davicafu/vigilia/internal/shared/platform/bus"
)

// InMemoryEventBus reparte los eventos de almacenamiento dentro del
// proceso. Sustituye a Kafka cuando no hay broker configurado; los
// suscriptores lentos pierden eventos en lugar de bloquear al publicador,
// el mismo contrato best-effort que el publicador real.
type InMemoryEventBus struct {
	subscribers []chan interface{}
	mu          sync.RWMutex
}

// Verificación estática
var _ sharedBus.EventPublisher = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make([]chan interface{}, 0),
	}
}

// Publish entrega el evento a todos los suscriptores sin bloquear: si el
// buffer de un canal está lleno, ese suscriptor se salta el evento.
func (b *InMemoryEventBus) Publish(ctx context.Context, event interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, subChan := range b.subscribers {
		select {
		case subChan <- event:
		default:
		}
	}
	return nil
}

// Subscribe registra un nuevo canal de escucha con el buffer indicado.
func (b *InMemoryEventBus) Subscribe(bufferSize int) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan interface{}, bufferSize)
	b.subscribers = append(b.subscribers, subChan)
	return subChan
}
