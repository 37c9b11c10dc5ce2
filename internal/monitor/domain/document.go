package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Document es la forma genérica de todos los recursos del API v3.
// Las cuatro colecciones comparten el mismo pipeline de filtrado,
// paginación y proyección, así que el dominio trabaja sobre mapas y deja
// la forma concreta de cada entidad fuera de este layer.
type Document map[string]interface{}

// Identifier devuelve el identificador del documento ("" si no tiene).
func (d Document) Identifier() string {
	id, _ := d["identifier"].(string)
	return id
}

// SetIdentifier fija el identificador.
func (d Document) SetIdentifier(id string) {
	d["identifier"] = id
}

// Clone copia el documento a un nivel de profundidad suficiente para que
// los adaptadores en memoria no compartan mapas con el llamador.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if nested, ok := v.(map[string]interface{}); ok {
			inner := make(map[string]interface{}, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}

// EpochMillis lee un campo numérico interpretado como milisegundos de época.
func (d Document) EpochMillis(field string) (time.Time, bool) {
	n, ok := numberOf(d[field])
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(n)).UTC(), true
}

// RFC3339Field lee un campo string con formato RFC3339.
func (d Document) RFC3339Field(field string) (time.Time, bool) {
	raw, ok := d[field].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	return parseTimestamp(raw)
}

// ---------------- Proyección de campos ----------------

// Project reduce cada documento al subconjunto de campos pedido. Lista
// vacía ⇒ documentos sin tocar. Los campos pedidos que no existen se
// omiten en silencio, nunca se rellenan con null ni producen error.
func Project(docs []Document, fields []string) []Document {
	if len(fields) == 0 {
		return docs
	}
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ProjectOne(doc, fields))
	}
	return out
}

// ProjectOne proyecta un único documento.
func ProjectOne(doc Document, fields []string) Document {
	if len(fields) == 0 {
		return doc
	}
	projected := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			projected[f] = v
		}
	}
	return projected
}

// ---------------- Descriptor de caché ----------------

// CacheDescriptor resume el resultado completo para la negociación
// condicional: ETag del contenido y el instante de modificación más
// reciente de la página.
type CacheDescriptor struct {
	ETag            string
	LastModified    time.Time
	HasLastModified bool
}

// TimestampExtractor es la capacidad por recurso de "mejor timestamp de
// modificación" que cada handler aporta al cablear (sin reflection).
type TimestampExtractor func(Document) (time.Time, bool)

// ComputeETag serializa el resultado completo a JSON canónico (claves de
// mapa ordenadas por encoding/json) y devuelve los primeros 16 caracteres
// hex del SHA-256. Es sensible al orden: dos resultados con los mismos
// documentos en distinto orden producen ETags distintos, igual que el
// sistema original.
func ComputeETag(docs []Document) string {
	payload, err := json.Marshal(docs)
	if err != nil {
		payload = []byte("[]")
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:16]
}

// NewCacheDescriptor calcula ETag y last-modified de la página. Con página
// vacía no hay last-modified y el matching por If-Modified-Since se salta.
func NewCacheDescriptor(docs []Document, extract TimestampExtractor) CacheDescriptor {
	cd := CacheDescriptor{ETag: ComputeETag(docs)}
	if extract == nil {
		return cd
	}
	for _, doc := range docs {
		if ts, ok := extract(doc); ok {
			if !cd.HasLastModified || ts.After(cd.LastModified) {
				cd.LastModified = ts
				cd.HasLastModified = true
			}
		}
	}
	return cd
}
