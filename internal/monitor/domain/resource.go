package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinDateMillis es la cota inferior de cualquier fecha aceptada en una
// mutación: 2000-01-01T00:00:00Z en milisegundos de época. Fechas en o por
// debajo de ella se rechazan.
const MinDateMillis = 946684800000

// Resource describe una de las cuatro colecciones del API v3. Las
// capacidades por recurso (validación, extracción de timestamp, campos de
// identidad) se entregan aquí como funciones y datos, de modo que el
// pipeline compartido nunca necesita reflection ni conocer las entidades.
type Resource struct {
	// Name es el nombre de colección tal y como aparece en la ruta.
	Name string

	// SortField es el campo de ordenación canónico de la colección.
	SortField string

	// CategoryField recibe el filtro grueso `type` del parámetro filter
	// ("" si la colección no categoriza).
	CategoryField string

	// IdentityFields alimentan la síntesis determinista de identificadores.
	IdentityFields []string

	// Patchable habilita PATCH (merge parcial) sobre la colección.
	Patchable bool

	// Validate aplica las reglas de creación/reemplazo con los mensajes
	// exactos del sistema legado.
	Validate func(Document) error

	// ExtractTimestamp devuelve el mejor instante de modificación del
	// documento para Last-Modified y el endpoint lastModified.
	ExtractTimestamp TimestampExtractor
}

// ---------------- Las cuatro colecciones ----------------

var Entries = Resource{
	Name:           "entries",
	SortField:      "date",
	CategoryField:  "type",
	IdentityFields: []string{"device", "date", "type", "sgv"},
	Validate: func(doc Document) error {
		ms, ok := numberOf(doc["date"])
		if !ok {
			return &ValidationError{Message: "Bad or absent date field"}
		}
		if ms <= MinDateMillis {
			return &ValidationError{Message: "Date field out of allowed range"}
		}
		return nil
	},
	ExtractTimestamp: func(doc Document) (time.Time, bool) {
		if ts, ok := doc.EpochMillis("srvModified"); ok {
			return ts, true
		}
		return doc.EpochMillis("date")
	},
}

var Treatments = Resource{
	Name:           "treatments",
	SortField:      "created_at",
	IdentityFields: []string{"device", "eventType", "created_at"},
	Patchable:      true,
	Validate: func(doc Document) error {
		if s, _ := doc["eventType"].(string); s == "" {
			return &ValidationError{Message: "Bad or absent eventType field"}
		}
		return validateCreatedAt(doc)
	},
	ExtractTimestamp: func(doc Document) (time.Time, bool) {
		if ts, ok := doc.EpochMillis("srvModified"); ok {
			return ts, true
		}
		return doc.RFC3339Field("created_at")
	},
}

var Food = Resource{
	Name:           "food",
	SortField:      "name",
	CategoryField:  "type",
	IdentityFields: []string{"name", "portion"},
	Validate: func(doc Document) error {
		if s, _ := doc["name"].(string); s == "" {
			return &ValidationError{Message: "Bad or absent name field"}
		}
		return nil
	},
	ExtractTimestamp: func(doc Document) (time.Time, bool) {
		return doc.EpochMillis("srvModified")
	},
}

var DeviceStatus = Resource{
	Name:           "devicestatus",
	SortField:      "created_at",
	IdentityFields: []string{"device", "created_at"},
	Validate: func(doc Document) error {
		if s, _ := doc["device"].(string); s == "" {
			return &ValidationError{Message: "Bad or absent device field"}
		}
		return validateCreatedAt(doc)
	},
	ExtractTimestamp: func(doc Document) (time.Time, bool) {
		if ts, ok := doc.EpochMillis("srvModified"); ok {
			return ts, true
		}
		return doc.RFC3339Field("created_at")
	},
}

// validateCreatedAt exige created_at RFC3339 por encima de la fecha mínima.
func validateCreatedAt(doc Document) error {
	ts, ok := doc.RFC3339Field("created_at")
	if !ok {
		return &ValidationError{Message: "Bad or absent created_at field"}
	}
	if ts.UnixMilli() <= MinDateMillis {
		return &ValidationError{Message: "Date field out of allowed range"}
	}
	return nil
}

// Registry devuelve las colecciones indexadas por nombre de ruta.
func Registry() map[string]Resource {
	return map[string]Resource{
		Entries.Name:      Entries,
		Treatments.Name:   Treatments,
		Food.Name:         Food,
		DeviceStatus.Name: DeviceStatus,
	}
}

// Resources lista las colecciones en orden estable (para endpoints que
// iteran todas, como lastModified).
func Resources() []Resource {
	return []Resource{Entries, Treatments, Food, DeviceStatus}
}

// ---------------- Síntesis de identificadores ----------------

// SynthesizeIdentifier deriva un identificador determinista de los campos
// de identidad del recurso más el instante de recepción; si el documento
// no trae ninguno de esos campos cae a un UUID aleatorio.
func (r Resource) SynthesizeIdentifier(doc Document, now time.Time) string {
	parts := make([]string, 0, len(r.IdentityFields)+1)
	for _, field := range r.IdentityFields {
		if v, ok := doc[field]; ok && v != nil {
			parts = append(parts, stringOf(v))
		}
	}
	if len(parts) == 0 {
		return uuid.New().String()
	}
	parts = append(parts, strconv.FormatInt(now.UnixMilli(), 10))
	seed := r.Name + "|" + strings.Join(parts, "|")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}
