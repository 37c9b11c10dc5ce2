package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/vigilia/internal/monitor/domain"
	sharedBus "github.com/davicafu/vigilia/internal/shared/platform/bus"
	sharedCache "github.com/davicafu/vigilia/internal/shared/platform/cache"
)

// DocumentService define los casos de uso del API v3 sobre las cuatro
// colecciones. Incorpora repositorio, caché de lectura, publicador de
// eventos y logger; el reloj es inyectable para los tests de síntesis de
// identificadores.
type DocumentService struct {
	repo   domain.DocumentRepository
	cache  sharedCache.Cache
	events sharedBus.EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

// NewDocumentService es el constructor del servicio.
func NewDocumentService(repo domain.DocumentRepository, cache sharedCache.Cache, events sharedBus.EventPublisher, log *zap.Logger) *DocumentService {
	return &DocumentService{
		repo:   repo,
		cache:  cache,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// WithClock sustituye el reloj del servicio (tests).
func (s *DocumentService) WithClock(now func() time.Time) *DocumentService {
	s.now = now
	return s
}

// CreateResult es el desenlace de una creación: o bien se insertó un
// documento nuevo, o bien se reconoció un duplicado por identificador.
type CreateResult struct {
	Identifier   string
	Deduplicated bool
}

// ---------------- Lectura ----------------

// List delega la página filtrada en el storage port.
func (s *DocumentService) List(ctx context.Context, res domain.Resource, cond domain.Condition, limit, offset int, ascending bool) ([]domain.Document, int, error) {
	return s.repo.List(ctx, res, cond, limit, offset, ascending)
}

// Get obtiene un documento (primero intenta la caché; tras un miss la
// puebla en segundo plano).
func (s *DocumentService) Get(ctx context.Context, res domain.Resource, identifier string) (domain.Document, error) {
	key := domain.CacheKeyByIdentifier(res.Name, identifier)

	if s.cache != nil {
		var doc domain.Document
		if ok, _ := s.cache.Get(ctx, key, &doc); ok {
			return doc, nil
		}
	}

	doc, err := s.repo.GetByIdentifier(ctx, res, identifier)
	if err != nil {
		return nil, err
	}

	sharedCache.AsyncCacheSet(ctx, s.cache, key, doc, 60, s.log)
	return doc, nil
}

// CollectionsLastModified devuelve, por colección, el instante de
// modificación más reciente en milisegundos de época. Se calcula a través
// del storage port con una lista descendente de tamaño 1.
func (s *DocumentService) CollectionsLastModified(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, res := range domain.Resources() {
		docs, _, err := s.repo.List(ctx, res, nil, 1, 0, false)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			continue
		}
		if ts, ok := res.ExtractTimestamp(docs[0]); ok {
			out[res.Name] = ts.UnixMilli()
		}
	}
	return out, nil
}

// ---------------- Mutaciones ----------------

// Create valida, deduplica por identificador y persiste el documento.
// Con identificador explícito ya existente no se escribe nada y se
// devuelve el desenlace de deduplicación; sin identificador se sintetiza
// uno determinista a partir de los campos de identidad y el instante de
// recepción.
//
// La secuencia comprobar-e-insertar no es atómica frente a dos creaciones
// idénticas concurrentes; si el repo detecta el choque en el insert, el
// segundo llamador recibe también el desenlace de deduplicación.
func (s *DocumentService) Create(ctx context.Context, res domain.Resource, doc domain.Document) (CreateResult, error) {
	if err := res.Validate(doc); err != nil {
		s.log.Warn("Create rejected by validation",
			zap.String("collection", res.Name),
			zap.Error(err))
		return CreateResult{}, err
	}

	now := s.now().UTC()

	if id := doc.Identifier(); id != "" {
		_, err := s.repo.GetByIdentifier(ctx, res, id)
		switch {
		case err == nil:
			return CreateResult{Identifier: id, Deduplicated: true}, nil
		case !errors.Is(err, domain.ErrDocumentNotFound):
			return CreateResult{}, err
		}
	} else {
		doc.SetIdentifier(res.SynthesizeIdentifier(doc, now))
	}

	stampCreate(doc, now)

	if err := s.repo.Create(ctx, res, doc); err != nil {
		if errors.Is(err, domain.ErrDocumentAlreadyExists) {
			// carrera de creaciones idénticas: lo tratamos como dedup
			return CreateResult{Identifier: doc.Identifier(), Deduplicated: true}, nil
		}
		return CreateResult{}, err
	}

	s.afterMutation(ctx, domain.DocumentCreated, res, doc.Identifier(), doc, now)
	return CreateResult{Identifier: doc.Identifier()}, nil
}

// Replace sustituye el documento completo (PUT). 404 si no existe; el
// srvCreated original se conserva.
func (s *DocumentService) Replace(ctx context.Context, res domain.Resource, identifier string, doc domain.Document) (domain.Document, error) {
	if err := res.Validate(doc); err != nil {
		s.log.Warn("Replace rejected by validation",
			zap.String("collection", res.Name),
			zap.Error(err))
		return nil, err
	}

	existing, err := s.repo.GetByIdentifier(ctx, res, identifier)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc.SetIdentifier(identifier)
	if created, ok := existing["srvCreated"]; ok {
		doc["srvCreated"] = created
	}
	doc["srvModified"] = now.UnixMilli()

	if err := s.repo.Update(ctx, res, identifier, doc); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, domain.DocumentUpdated, res, identifier, doc, now)
	return doc, nil
}

// Merge aplica un parche parcial (PATCH) sobre el documento almacenado:
// los campos no especificados quedan intactos. Solo disponible en
// colecciones con Patchable.
func (s *DocumentService) Merge(ctx context.Context, res domain.Resource, identifier string, patch domain.Document) (domain.Document, error) {
	existing, err := s.repo.GetByIdentifier(ctx, res, identifier)
	if err != nil {
		return nil, err
	}

	merged := existing.Clone()
	for k, v := range patch {
		switch k {
		case "identifier", "srvCreated", "srvModified":
			// los campos de servidor no se parchean
			continue
		}
		merged[k] = v
	}

	if err := res.Validate(merged); err != nil {
		s.log.Warn("Merge rejected by validation",
			zap.String("collection", res.Name),
			zap.Error(err))
		return nil, err
	}

	now := s.now().UTC()
	merged["srvModified"] = now.UnixMilli()

	if err := s.repo.Update(ctx, res, identifier, merged); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, domain.DocumentPatched, res, identifier, merged, now)
	return merged, nil
}

// Delete elimina el documento y limpia caché.
func (s *DocumentService) Delete(ctx context.Context, res domain.Resource, identifier string) error {
	if err := s.repo.Delete(ctx, res, identifier); err != nil {
		return err
	}

	s.afterMutation(ctx, domain.DocumentDeleted, res, identifier, nil, s.now().UTC())
	return nil
}

// ---------------- Internos ----------------

// stampCreate fija los sellos de servidor en una creación.
func stampCreate(doc domain.Document, now time.Time) {
	ms := now.UnixMilli()
	doc["srvCreated"] = ms
	doc["srvModified"] = ms
}

// afterMutation publica el evento de almacenamiento (best-effort) y
// mantiene la caché coherente.
func (s *DocumentService) afterMutation(ctx context.Context, op string, res domain.Resource, identifier string, doc domain.Document, now time.Time) {
	key := domain.CacheKeyByIdentifier(res.Name, identifier)
	if op == domain.DocumentDeleted {
		sharedCache.AsyncCacheDelete(ctx, s.cache, key, s.log)
	} else {
		sharedCache.AsyncCacheSet(ctx, s.cache, key, doc, 60, s.log)
	}

	if s.events == nil {
		return
	}
	evt := domain.StorageEvent{
		Op:         op,
		Collection: res.Name,
		Identifier: identifier,
		Document:   doc,
		OccurredAt: now,
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("⚠️ No se pudo publicar el evento de almacenamiento",
			zap.String("op", op),
			zap.String("collection", res.Name),
			zap.String("identifier", identifier),
			zap.Error(err))
	}
}
