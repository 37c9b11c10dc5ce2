package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/vigilia/internal/monitor/domain"
	"github.com/davicafu/vigilia/internal/monitor/infra/outbound/db/memory"
	"github.com/davicafu/vigilia/tests/mocks"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms).UTC() }
}

func newTestService(repo domain.DocumentRepository) (*DocumentService, *mocks.DummyCache, *mocks.DummyPublisher) {
	cache := mocks.NewDummyCache()
	publisher := &mocks.DummyPublisher{}
	svc := NewDocumentService(repo, cache, publisher, zap.NewNop()).
		WithClock(fixedClock(1622541600000))
	return svc, cache, publisher
}

// ---------------- Create ----------------

func TestCreate_SintetizaIdentificador(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, publisher := newTestService(repo)
	ctx := context.Background()

	doc := domain.Document{"date": 1622541600000, "sgv": 120, "type": "sgv", "device": "xdrip"}
	result, err := svc.Create(ctx, domain.Entries, doc)

	require.NoError(t, err)
	assert.False(t, result.Deduplicated)
	assert.NotEmpty(t, result.Identifier)

	stored, err := repo.GetByIdentifier(ctx, domain.Entries, result.Identifier)
	require.NoError(t, err)
	assert.Equal(t, int64(1622541600000), stored["srvCreated"])
	assert.Equal(t, int64(1622541600000), stored["srvModified"])

	events := publisher.Events()
	require.Len(t, events, 1)
	evt, ok := events[0].(domain.StorageEvent)
	require.True(t, ok)
	assert.Equal(t, domain.DocumentCreated, evt.Op)
	assert.Equal(t, "entries", evt.Collection)
	assert.Equal(t, result.Identifier, evt.Identifier)
}

func TestCreate_DuplicadoEnElMismoInstante(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, publisher := newTestService(repo)
	ctx := context.Background()

	doc := domain.Document{"date": 1622541600000, "sgv": 120, "type": "sgv", "device": "xdrip"}
	first, err := svc.Create(ctx, domain.Entries, doc.Clone())
	require.NoError(t, err)

	// mismos campos de identidad con el reloj parado ⇒ mismo identificador
	// sintetizado, el insert choca y se resuelve como deduplicación
	second, err := svc.Create(ctx, domain.Entries, doc.Clone())
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.Identifier, second.Identifier)

	_, total, err := repo.List(ctx, domain.Entries, nil, 10, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, publisher.Events(), 1)
}

func TestCreate_RelojAvanzadoNoColisiona(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	doc := domain.Document{"date": 1622541600000, "sgv": 120, "type": "sgv", "device": "xdrip"}
	first, err := svc.Create(ctx, domain.Entries, doc.Clone())
	require.NoError(t, err)

	svc.WithClock(fixedClock(1622541600001))
	second, err := svc.Create(ctx, domain.Entries, doc.Clone())
	require.NoError(t, err)

	assert.False(t, second.Deduplicated)
	assert.NotEqual(t, first.Identifier, second.Identifier)

	_, total, err := repo.List(ctx, domain.Entries, nil, 10, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestCreate_IdentificadorExplicitoDeduplica(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, publisher := newTestService(repo)
	ctx := context.Background()

	doc := domain.Document{"identifier": "abc-123", "date": 1622541600000, "sgv": 120}
	_, err := svc.Create(ctx, domain.Entries, doc)
	require.NoError(t, err)

	// segundo create con el mismo identificador: no se escribe nada
	other := domain.Document{"identifier": "abc-123", "date": 1622541600000, "sgv": 999}
	result, err := svc.Create(ctx, domain.Entries, other)
	require.NoError(t, err)
	assert.True(t, result.Deduplicated)
	assert.Equal(t, "abc-123", result.Identifier)

	stored, err := repo.GetByIdentifier(ctx, domain.Entries, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, 120, stored["sgv"])
	assert.Len(t, publisher.Events(), 1)
}

func TestCreate_ValidacionRechaza(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, publisher := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.Entries, domain.Document{"sgv": 120})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Bad or absent date field", verr.Message)

	_, total, err := repo.List(ctx, domain.Entries, nil, 10, 0, true)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, publisher.Events())
}

// ---------------- Replace / Merge ----------------

func TestReplace_ConservaSrvCreated(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, publisher := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.Entries, domain.Document{
		"date": 1622541600000, "sgv": 120, "type": "sgv", "device": "xdrip",
	})
	require.NoError(t, err)

	svc.WithClock(fixedClock(1622545200000))
	replaced, err := svc.Replace(ctx, domain.Entries, created.Identifier, domain.Document{
		"date": 1622541600000, "sgv": 118, "type": "sgv", "device": "xdrip",
	})
	require.NoError(t, err)

	assert.Equal(t, created.Identifier, replaced.Identifier())
	assert.Equal(t, 118, replaced["sgv"])
	assert.Equal(t, int64(1622541600000), replaced["srvCreated"]) // el original
	assert.Equal(t, int64(1622545200000), replaced["srvModified"])

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.DocumentUpdated, events[1].(domain.StorageEvent).Op)
}

func TestReplace_NoExiste(t *testing.T) {
	svc, _, _ := newTestService(memory.NewDocumentRepoInMemory())

	_, err := svc.Replace(context.Background(), domain.Entries, "ghost", domain.Document{
		"date": 1622541600000,
	})
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestMerge_ParcheaSinTocarCamposDeServidor(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, publisher := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.Treatments, domain.Document{
		"eventType":  "Meal Bolus",
		"created_at": "2021-06-01T10:00:00Z",
		"carbs":      30,
		"insulin":    2.5,
	})
	require.NoError(t, err)

	svc.WithClock(fixedClock(1622545200000))
	// identifier y srvCreated van en el parche pero se ignoran
	merged, err := svc.Merge(ctx, domain.Treatments, created.Identifier, domain.Document{
		"carbs":      45,
		"identifier": "hack",
		"srvCreated": 1,
	})
	require.NoError(t, err)

	assert.Equal(t, created.Identifier, merged.Identifier())
	assert.Equal(t, 45, merged["carbs"])
	assert.Equal(t, 2.5, merged["insulin"]) // los campos no parcheados quedan
	assert.Equal(t, int64(1622541600000), merged["srvCreated"])
	assert.Equal(t, int64(1622545200000), merged["srvModified"])

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.DocumentPatched, events[1].(domain.StorageEvent).Op)
}

func TestMerge_ValidaElResultadoCombinado(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.Treatments, domain.Document{
		"eventType":  "Meal Bolus",
		"created_at": "2021-06-01T10:00:00Z",
		"carbs":      30,
	})
	require.NoError(t, err)

	// el parche deja el documento combinado inválido
	_, err = svc.Merge(ctx, domain.Treatments, created.Identifier, domain.Document{
		"eventType": "",
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Bad or absent eventType field", verr.Message)

	// y el documento almacenado no cambió
	stored, err := repo.GetByIdentifier(ctx, domain.Treatments, created.Identifier)
	require.NoError(t, err)
	assert.Equal(t, 30, stored["carbs"])
	assert.Equal(t, "Meal Bolus", stored["eventType"])
}

// ---------------- Delete ----------------

func TestDelete(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, publisher := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.Entries, domain.Document{
		"date": 1622541600000, "sgv": 120,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, domain.Entries, created.Identifier))

	_, err = repo.GetByIdentifier(ctx, domain.Entries, created.Identifier)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, domain.Entries, created.Identifier), domain.ErrDocumentNotFound)

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.DocumentDeleted, events[1].(domain.StorageEvent).Op)
}

// ---------------- Get con caché ----------------

func TestGet_HitDeCacheNoTocaRepositorio(t *testing.T) {
	// el repositorio siempre falla: si Get devuelve documento es porque
	// salió de la caché
	repo := &mocks.FailingRepo{Err: errors.New("db caída")}
	svc, cache, _ := newTestService(repo)

	cache.SetForTest(domain.CacheKeyByIdentifier("entries", "abc-123"), domain.Document{
		"identifier": "abc-123",
		"sgv":        120,
	})

	doc, err := svc.Get(context.Background(), domain.Entries, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", doc.Identifier())
	assert.Equal(t, float64(120), doc["sgv"]) // ida y vuelta por JSON
}

func TestGet_MissDeCachePueblaEnSegundoPlano(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, cache, _ := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.Entries, domain.Document{
		"date": 1622541600000, "sgv": 120,
	})
	require.NoError(t, err)

	key := domain.CacheKeyByIdentifier("entries", created.Identifier)
	cache.Delete(ctx, key)

	doc, err := svc.Get(ctx, domain.Entries, created.Identifier)
	require.NoError(t, err)
	assert.Equal(t, created.Identifier, doc.Identifier())

	// la población de caché es asíncrona
	assert.Eventually(t, func() bool { return cache.Contains(key) },
		time.Second, 10*time.Millisecond)
}

// ---------------- lastModified ----------------

func TestCollectionsLastModified(t *testing.T) {
	repo := memory.NewDocumentRepoInMemory()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	// sembrado directo en el repo, sin sellos de servidor: el instante sale
	// del campo de fecha propio de cada colección
	require.NoError(t, repo.Create(ctx, domain.Entries, domain.Document{
		"identifier": "e1", "date": 1622541600000,
	}))
	require.NoError(t, repo.Create(ctx, domain.Entries, domain.Document{
		"identifier": "e2", "date": 1622545200000,
	}))
	require.NoError(t, repo.Create(ctx, domain.Treatments, domain.Document{
		"identifier": "t1", "eventType": "Meal Bolus", "created_at": "2021-06-01T10:00:00Z",
	}))

	out, err := svc.CollectionsLastModified(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1622545200000), out["entries"]) // el más reciente
	assert.Equal(t, time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC).UnixMilli(), out["treatments"])

	// las colecciones vacías no aparecen
	_, exists := out["food"]
	assert.False(t, exists)
	_, exists = out["devicestatus"]
	assert.False(t, exists)
}
