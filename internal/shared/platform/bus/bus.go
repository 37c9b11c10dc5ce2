package bus

import "context"

// Keyer permite a un evento declarar su clave de partición.
type Keyer interface {
	PartitionKey() string
}

// EventPublisher publica eventos de integración. La semántica de topic y
// el formato del payload los decide cada adaptador.
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}
