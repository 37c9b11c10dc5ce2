package mocks

import (
	"context"
	"sync"

	sharedBus "github.com/davicafu/vigilia/internal/shared/platform/bus"
)

// DummyPublisher acumula los eventos publicados para que los tests puedan
// inspeccionarlos.
type DummyPublisher struct {
	mu        sync.Mutex
	Published []interface{}
	Err       error // si se fija, Publish falla con este error
}

var _ sharedBus.EventPublisher = (*DummyPublisher)(nil)

func (p *DummyPublisher) Publish(ctx context.Context, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.Published = append(p.Published, event)
	return nil
}

// Events devuelve una copia de los eventos publicados hasta el momento.
func (p *DummyPublisher) Events() []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]interface{}, len(p.Published))
	copy(out, p.Published)
	return out
}
