package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/vigilia/internal/monitor/domain"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// reservedKeys son las claves de query que el protocolo consume y que por
// tanto nunca se interpretan como criterios de filtrado (comparación
// case-insensitive).
var reservedKeys = map[string]bool{
	"token":             true,
	"sort":              true,
	"sort$desc":         true,
	"limit":             true,
	"skip":              true,
	"offset":            true,
	"fields":            true,
	"now":               true,
	"filter":            true,
	"if-modified-since": true,
	"if-none-match":     true,
}

// QueryParameters es el resultado tipado de parsear la query string de una
// petición de listado. Se construye una vez por petición y es inmutable a
// partir de ahí. Invariantes tras la construcción: Limit ∈ [1,1000] y
// Offset ≥ 0.
type QueryParameters struct {
	Limit    int
	Offset   int
	Fields   []string
	Sort     string
	SortDesc bool
	Filter   interface{}
	Criteria []domain.Criterion

	IfModifiedSince    time.Time
	HasIfModifiedSince bool
	IfNoneMatch        string
}

// ParseQueryParameters construye QueryParameters desde la URL y las
// cabeceras de la petición. El único error posible es OutOfToleranceError
// por `limit` negativo; todo lo demás degrada con un warning.
func ParseQueryParameters(u *url.URL, header http.Header, log *zap.Logger) (QueryParameters, error) {
	query := u.Query()
	p := QueryParameters{Limit: defaultLimit}

	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			log.Warn("Parámetro limit no numérico, se usa el default",
				zap.String("limit", raw))
		case n < 0:
			// el valor crudo negativo es error duro, no clamp
			return QueryParameters{}, &domain.OutOfToleranceError{Param: "limit"}
		default:
			p.Limit = n
		}
	}

	if raw := query.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p.Offset = n
		} else {
			log.Warn("Parámetro offset no numérico, se usa el default",
				zap.String("offset", raw))
		}
	}

	// el alias skip gana siempre que sea un entero no negativo
	if raw := query.Get("skip"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			p.Offset = n
		}
	}

	// clamps finales
	if p.Limit < 1 {
		p.Limit = 1
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	p.Fields = parseFields(query.Get("fields"))
	p.Sort = query.Get("sort")
	p.SortDesc = query.Has("sort$desc")

	if raw := query.Get("filter"); raw != "" {
		var filter interface{}
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			log.Warn("Parámetro filter con JSON inválido, se ignora",
				zap.String("filter", raw),
				zap.Error(err))
		} else {
			p.Filter = filter
		}
	}

	// las cabeceras condicionales mandan; la superficie legada aceptaba
	// también los mismos valores como parámetros de query
	ims := header.Get("If-Modified-Since")
	if ims == "" {
		ims = query.Get("if-modified-since")
	}
	if ims != "" {
		if ts, ok := parseHTTPDate(ims); ok {
			p.IfModifiedSince = ts
			p.HasIfModifiedSince = true
		}
	}

	p.IfNoneMatch = header.Get("If-None-Match")
	if p.IfNoneMatch == "" {
		p.IfNoneMatch = query.Get("if-none-match")
	}

	p.Criteria = ParseCriteria(u.RawQuery, log)

	return p, nil
}

// Ascending resuelve la dirección de ordenación. La clave `sort$desc`
// fuerza descendente incondicionalmente; si no, decide el token `sort`
// (ausente ⇒ ascendente, el default del protocolo es más-antiguo-primero).
func (p QueryParameters) Ascending() bool {
	if p.SortDesc {
		return false
	}
	if p.Sort == "" {
		return true
	}
	if strings.HasPrefix(p.Sort, "-") || strings.HasPrefix(strings.ToLower(p.Sort), "desc") {
		return false
	}
	return true
}

// parseFields trocea el parámetro fields: comas, trim, sin vacíos y
// deduplicado conservando la primera aparición.
func parseFields(raw string) []string {
	if raw == "" {
		return nil
	}
	seen := make(map[string]bool)
	var fields []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		fields = append(fields, tok)
	}
	return fields
}

// parseHTTPDate acepta fechas HTTP (RFC 7231) y RFC3339.
func parseHTTPDate(raw string) (time.Time, bool) {
	if ts, err := http.ParseTime(raw); err == nil {
		return ts, true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ---------------- Criterios de filtrado ----------------

// ParseCriteria escanea la query string cruda en busca de pares
// `field$op=value`, saltándose las claves reservadas. Trabaja sobre la
// query cruda y no sobre url.Values porque el orden original importa: al
// plegar la condición, los criterios posteriores sobre un mismo campo
// machacan a los anteriores.
func ParseCriteria(rawQuery string, log *zap.Logger) []domain.Criterion {
	if rawQuery == "" {
		return nil
	}

	var criteria []domain.Criterion
	seen := make(map[string]bool)

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}

		if reservedKeys[strings.ToLower(key)] {
			continue
		}
		// de una clave repetida solo cuenta el primer valor
		if seen[key] {
			continue
		}
		seen[key] = true

		field := key
		op := domain.OpEq
		if idx := strings.Index(key, "$"); idx >= 0 {
			field = key[:idx]
			parsed, ok := domain.ParseOperator(key[idx+1:])
			if !ok || field == "" {
				log.Warn("Operador de filtro desconocido, se descarta el par",
					zap.String("key", key))
				continue
			}
			op = parsed
		}

		crit := domain.Criterion{Field: field, Op: op}
		switch op {
		case domain.OpIn, domain.OpNin:
			crit.Values = domain.CoerceValues(field, value)
		default:
			crit.Value = domain.CoerceValue(field, value)
		}
		criteria = append(criteria, crit)
	}

	return criteria
}

// buildCondition produce la condición canónica: la lista de criterios
// tiene preferencia y el objeto `filter` crudo solo se traduce cuando no
// hubo criterios. Devuelve además la categoría (`type`) extraída del
// filtro crudo.
func buildCondition(p QueryParameters, log *zap.Logger) (domain.Condition, interface{}) {
	if len(p.Criteria) > 0 {
		return domain.ConditionFromCriteria(p.Criteria), nil
	}

	cond, category, dropped := domain.ConditionFromFilter(p.Filter)
	for _, field := range dropped {
		log.Warn("Propiedad de filter con forma inválida, se descarta",
			zap.String("field", field))
	}
	return cond, category
}
