package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeETag(t *testing.T) {
	docs := []Document{
		{"identifier": "a", "sgv": 120},
		{"identifier": "b", "sgv": 95},
	}

	etag := ComputeETag(docs)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), etag)

	// determinista: el mismo contenido produce el mismo tag
	assert.Equal(t, etag, ComputeETag([]Document{
		{"identifier": "a", "sgv": 120},
		{"identifier": "b", "sgv": 95},
	}))

	// sensible al orden: la misma página reordenada cambia el tag
	reversed := []Document{docs[1], docs[0]}
	assert.NotEqual(t, etag, ComputeETag(reversed))

	// contenido distinto, tag distinto
	docs[0]["sgv"] = 121
	assert.NotEqual(t, etag, ComputeETag(docs))

	assert.Len(t, ComputeETag(nil), 16)
}

func TestProject(t *testing.T) {
	docs := []Document{
		{"identifier": "a", "sgv": 120, "device": "xdrip", "type": "sgv"},
		{"identifier": "b", "direction": "Flat"},
	}

	// sin campos pedidos los documentos no se tocan
	assert.Equal(t, docs, Project(docs, nil))

	projected := Project(docs, []string{"sgv", "direction"})
	require.Len(t, projected, 2)
	assert.Equal(t, Document{"sgv": 120}, projected[0])
	assert.Equal(t, Document{"direction": "Flat"}, projected[1])

	// los campos inexistentes se omiten en silencio, sin null de relleno
	one := ProjectOne(docs[0], []string{"sgv", "ghost"})
	assert.Equal(t, Document{"sgv": 120}, one)
	_, exists := one["ghost"]
	assert.False(t, exists)
}

func TestDocument_Clone(t *testing.T) {
	original := Document{
		"identifier": "a",
		"nested":     map[string]interface{}{"iob": 1.5},
	}

	clone := original.Clone()
	clone["identifier"] = "b"
	clone["nested"].(map[string]interface{})["iob"] = 9.9

	assert.Equal(t, "a", original.Identifier())
	assert.Equal(t, 1.5, original["nested"].(map[string]interface{})["iob"])
}

func TestDocument_EpochMillis(t *testing.T) {
	doc := Document{"date": 1622541600000, "notes": "hola"}

	ts, ok := doc.EpochMillis("date")
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1622541600000).UTC(), ts)

	_, ok = doc.EpochMillis("notes")
	assert.False(t, ok)
	_, ok = doc.EpochMillis("ghost")
	assert.False(t, ok)
}

func TestDocument_RFC3339Field(t *testing.T) {
	doc := Document{"created_at": "2021-06-01T10:00:00Z", "device": "xdrip"}

	ts, ok := doc.RFC3339Field("created_at")
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC), ts.UTC())

	_, ok = doc.RFC3339Field("device")
	assert.False(t, ok)
}

func TestNewCacheDescriptor(t *testing.T) {
	extract := func(d Document) (time.Time, bool) {
		return d.EpochMillis("date")
	}

	docs := []Document{
		{"identifier": "a", "date": 1622541600000},
		{"identifier": "b", "date": 1622545200000}, // el más reciente
		{"identifier": "c"},                        // sin timestamp
	}

	cd := NewCacheDescriptor(docs, extract)
	assert.Len(t, cd.ETag, 16)
	require.True(t, cd.HasLastModified)
	assert.Equal(t, time.UnixMilli(1622545200000).UTC(), cd.LastModified)

	// página vacía: hay ETag pero no last-modified
	empty := NewCacheDescriptor(nil, extract)
	assert.Len(t, empty.ETag, 16)
	assert.False(t, empty.HasLastModified)

	// sin extractor tampoco hay last-modified
	noExtract := NewCacheDescriptor(docs, nil)
	assert.False(t, noExtract.HasLastModified)
}
