package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/vigilia/internal/monitor/domain"
)

func seedEntries(t *testing.T, repo *DocumentRepoInMemory) {
	t.Helper()
	ctx := context.Background()
	docs := []domain.Document{
		{"identifier": "e1", "date": 1622541600000, "sgv": 120, "type": "sgv"},
		{"identifier": "e2", "date": 1622545200000, "sgv": 95, "type": "sgv"},
		{"identifier": "e3", "date": 1622548800000, "sgv": 200, "type": "sgv"},
		{"identifier": "e4", "date": 1622552400000, "sgv": 80, "type": "mbg"},
		{"identifier": "e5", "date": 1622556000000, "sgv": 150, "type": "sgv"},
	}
	for _, doc := range docs {
		require.NoError(t, repo.Create(ctx, domain.Entries, doc))
	}
}

func identifiers(docs []domain.Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Identifier())
	}
	return out
}

func TestList_FiltraPorCondicion(t *testing.T) {
	repo := NewDocumentRepoInMemory()
	seedEntries(t, repo)
	ctx := context.Background()

	cond := domain.Condition{
		"type": "sgv",
		"sgv":  map[string]interface{}{"$gte": 120.0},
	}
	docs, total, err := repo.List(ctx, domain.Entries, cond, 100, 0, true)

	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"e1", "e3", "e5"}, identifiers(docs))
}

func TestList_OrdenaPorElCampoCanonico(t *testing.T) {
	repo := NewDocumentRepoInMemory()
	seedEntries(t, repo)
	ctx := context.Background()

	docs, _, err := repo.List(ctx, domain.Entries, nil, 100, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, identifiers(docs))

	docs, _, err = repo.List(ctx, domain.Entries, nil, 100, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"e5", "e4", "e3", "e2", "e1"}, identifiers(docs))
}

func TestList_Ventana(t *testing.T) {
	repo := NewDocumentRepoInMemory()
	seedEntries(t, repo)
	ctx := context.Background()

	// el total es siempre el de la condición, no el de la ventana
	docs, total, err := repo.List(ctx, domain.Entries, nil, 2, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"e1", "e2"}, identifiers(docs))

	docs, total, err = repo.List(ctx, domain.Entries, nil, 2, 4, true)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"e5"}, identifiers(docs))

	// offset más allá del total devuelve página vacía, no error
	docs, total, err = repo.List(ctx, domain.Entries, nil, 2, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, docs)
}

func TestList_DevuelveCopias(t *testing.T) {
	repo := NewDocumentRepoInMemory()
	seedEntries(t, repo)
	ctx := context.Background()

	docs, _, err := repo.List(ctx, domain.Entries, nil, 1, 0, true)
	require.NoError(t, err)
	docs[0]["sgv"] = 999

	stored, err := repo.GetByIdentifier(ctx, domain.Entries, "e1")
	require.NoError(t, err)
	assert.Equal(t, 120, stored["sgv"])
}

func TestCreate_Duplicado(t *testing.T) {
	repo := NewDocumentRepoInMemory()
	ctx := context.Background()

	doc := domain.Document{"identifier": "e1", "date": 1622541600000}
	require.NoError(t, repo.Create(ctx, domain.Entries, doc))

	err := repo.Create(ctx, domain.Entries, doc)
	assert.ErrorIs(t, err, domain.ErrDocumentAlreadyExists)
}

func TestGetUpdateDelete(t *testing.T) {
	repo := NewDocumentRepoInMemory()
	ctx := context.Background()

	_, err := repo.GetByIdentifier(ctx, domain.Entries, "ghost")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	err = repo.Update(ctx, domain.Entries, "ghost", domain.Document{"identifier": "ghost"})
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	require.NoError(t, repo.Create(ctx, domain.Entries, domain.Document{
		"identifier": "e1", "date": 1622541600000, "sgv": 120,
	}))

	require.NoError(t, repo.Update(ctx, domain.Entries, "e1", domain.Document{
		"identifier": "e1", "date": 1622541600000, "sgv": 118,
	}))
	stored, err := repo.GetByIdentifier(ctx, domain.Entries, "e1")
	require.NoError(t, err)
	assert.Equal(t, 118, stored["sgv"])

	require.NoError(t, repo.Delete(ctx, domain.Entries, "e1"))
	assert.ErrorIs(t, repo.Delete(ctx, domain.Entries, "e1"), domain.ErrDocumentNotFound)

	// las colecciones son independientes entre sí
	require.NoError(t, repo.Create(ctx, domain.Food, domain.Document{
		"identifier": "e1", "name": "Manzana",
	}))
	_, err = repo.GetByIdentifier(ctx, domain.Entries, "e1")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
