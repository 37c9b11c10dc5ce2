package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ---------- Errores de dominio ----------

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrDocumentAlreadyExists = errors.New("document already exists")
)

// ---------- Puerto de almacenamiento ----------

// DocumentRepository es el storage port compartido por las cuatro
// colecciones. List pagina sobre el campo de ordenación canónico del
// recurso; cond == nil significa "todo".
type DocumentRepository interface {
	// List devuelve la página y el total de documentos que cumplen cond.
	List(ctx context.Context, res Resource, cond Condition, limit, offset int, ascending bool) ([]Document, int, error)

	// GetByIdentifier devuelve ErrDocumentNotFound si no existe.
	GetByIdentifier(ctx context.Context, res Resource, identifier string) (Document, error)

	// Create devuelve ErrDocumentAlreadyExists si el identificador ya está
	// ocupado en la colección.
	Create(ctx context.Context, res Resource, doc Document) error

	// Update reemplaza el documento; ErrDocumentNotFound si no existe.
	Update(ctx context.Context, res Resource, identifier string, doc Document) error

	// Delete devuelve ErrDocumentNotFound si no existe.
	Delete(ctx context.Context, res Resource, identifier string) error
}

// ---------- Eventos de almacenamiento ----------

const (
	DocumentCreated = "document.created"
	DocumentUpdated = "document.updated"
	DocumentPatched = "document.patched"
	DocumentDeleted = "document.deleted"
)

// StorageTopic es el topic por defecto de los eventos de almacenamiento.
const StorageTopic = "vigilia.storage"

// StorageEvent se difunde tras cada mutación con éxito. La publicación es
// best-effort: un fallo se loguea y nunca tumba la petición.
type StorageEvent struct {
	Op         string    `json:"op"`
	Collection string    `json:"collection"`
	Identifier string    `json:"identifier"`
	Document   Document  `json:"document,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PartitionKey agrupa los eventos de un mismo documento en la misma
// partición.
func (e StorageEvent) PartitionKey() string {
	return e.Collection + ":" + e.Identifier
}

// ---------- Helpers comunes (claves de caché) ----------

// CacheKeyByIdentifier forma una clave consistente para la caché de
// documentos.
func CacheKeyByIdentifier(collection, identifier string) string {
	return fmt.Sprintf("doc:%s:%s", collection, identifier)
}
