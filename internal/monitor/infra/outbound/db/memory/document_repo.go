// Package memory implementa el repositorio de documentos sobre mapas en
// memoria. Es el backend de referencia: evalúa las condiciones con el
// mismo evaluador del dominio que usan los tests, y el que arranca por
// defecto cuando no se configura otro.
package memory

import (
	"context"
	"sync"

	"github.com/davicafu/vigilia/internal/monitor/domain"
)

type DocumentRepoInMemory struct {
	mu   sync.RWMutex
	data map[string]map[string]domain.Document
}

func NewDocumentRepoInMemory() *DocumentRepoInMemory {
	return &DocumentRepoInMemory{
		data: make(map[string]map[string]domain.Document),
	}
}

// List filtra, ordena y pagina la colección completa en memoria.
// Devuelve también el total de documentos que casan con la condición, sin
// aplicar la ventana.
func (r *DocumentRepoInMemory) List(ctx context.Context, res domain.Resource, cond domain.Condition, limit, offset int, ascending bool) ([]domain.Document, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Document, 0)
	for _, doc := range r.data[res.Name] {
		if cond.Matches(doc) {
			matched = append(matched, doc.Clone())
		}
	}

	domain.SortDocuments(matched, res.SortField, ascending)

	total := len(matched)
	if offset >= total {
		return []domain.Document{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *DocumentRepoInMemory) GetByIdentifier(ctx context.Context, res domain.Resource, identifier string) (domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.data[res.Name][identifier]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (r *DocumentRepoInMemory) Create(ctx context.Context, res domain.Resource, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	coll, ok := r.data[res.Name]
	if !ok {
		coll = make(map[string]domain.Document)
		r.data[res.Name] = coll
	}

	id := doc.Identifier()
	if _, exists := coll[id]; exists {
		return domain.ErrDocumentAlreadyExists
	}
	coll[id] = doc.Clone()
	return nil
}

func (r *DocumentRepoInMemory) Update(ctx context.Context, res domain.Resource, identifier string, doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	coll := r.data[res.Name]
	if _, exists := coll[identifier]; !exists {
		return domain.ErrDocumentNotFound
	}
	coll[identifier] = doc.Clone()
	return nil
}

func (r *DocumentRepoInMemory) Delete(ctx context.Context, res domain.Resource, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	coll := r.data[res.Name]
	if _, exists := coll[identifier]; !exists {
		return domain.ErrDocumentNotFound
	}
	delete(coll, identifier)
	return nil
}
