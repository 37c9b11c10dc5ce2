// Package events contiene los publicadores de eventos de almacenamiento:
// Kafka para despliegues reales y un bus en memoria para desarrollo.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/vigilia/internal/shared/platform/bus"
	"github.com/davicafu/vigilia/pkg/utils"
)

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// Verificación estática
var _ sharedBus.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

// Publish serializa el evento y lo escribe en el topic del writer, con
// unos pocos reintentos ante fallos transitorios del broker. Si el evento
// sabe dar una clave de partición se usa, de modo que todos los eventos de
// un mismo documento caigan en la misma partición y conserven el orden.
func (p *KafkaPublisher) Publish(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var key []byte
	if keyer, ok := event.(sharedBus.Keyer); ok {
		key = []byte(keyer.PartitionKey())
	}

	msg := kafka.Message{
		Key:   key,
		Value: data,
	}

	err = utils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		p.log.Error("Error publicando en Kafka", zap.Error(err))
		return err
	}

	p.log.Debug("Evento publicado", zap.Any("event", event))
	return nil
}
