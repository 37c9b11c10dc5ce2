package mocks

import (
	"context"

	"github.com/davicafu/vigilia/internal/monitor/domain"
)

// FailingRepo devuelve siempre el error inyectado. Sirve para probar los
// caminos de fallo de almacenamiento (respuestas 500).
type FailingRepo struct {
	Err error
}

var _ domain.DocumentRepository = (*FailingRepo)(nil)

func (r *FailingRepo) List(ctx context.Context, res domain.Resource, cond domain.Condition, limit, offset int, ascending bool) ([]domain.Document, int, error) {
	return nil, 0, r.Err
}

func (r *FailingRepo) GetByIdentifier(ctx context.Context, res domain.Resource, identifier string) (domain.Document, error) {
	return nil, r.Err
}

func (r *FailingRepo) Create(ctx context.Context, res domain.Resource, doc domain.Document) error {
	return r.Err
}

func (r *FailingRepo) Update(ctx context.Context, res domain.Resource, identifier string, doc domain.Document) error {
	return r.Err
}

func (r *FailingRepo) Delete(ctx context.Context, res domain.Resource, identifier string) error {
	return r.Err
}
