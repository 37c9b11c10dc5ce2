package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// ---------------- Operadores ----------------

// Operator es el operador neutral de un criterio de filtrado, tal y como
// llega en la query string (`field$op=value`).
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
	OpNin Operator = "nin"
	OpRe  Operator = "re"
)

// operatorSymbols mapea cada operador a su símbolo canónico de condición.
var operatorSymbols = map[Operator]string{
	OpEq:  "$eq",
	OpNe:  "$ne",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpLt:  "$lt",
	OpLte: "$lte",
	OpIn:  "$in",
	OpNin: "$nin",
	OpRe:  "$regex",
}

// ParseOperator valida el sufijo de un `field$op`. Devuelve false para
// sufijos desconocidos; el llamador descarta el par completo.
func ParseOperator(raw string) (Operator, bool) {
	op := Operator(raw)
	_, ok := operatorSymbols[op]
	return op, ok
}

// Symbol devuelve el símbolo ("$gte", "$regex"...) del operador.
func (o Operator) Symbol() string {
	return operatorSymbols[o]
}

// ---------------- Criterion ----------------

// Criterion describe una condición neutral `campo operador valor` ya
// coercida. Para in/nin el valor es la lista Values.
type Criterion struct {
	Field  string
	Op     Operator
	Value  Value
	Values []Value // solo in/nin
}

// ---------------- Condition ----------------

// Condition es la representación canónica que consume el storage port:
// campo → escalar (igualdad implícita) o mapa anidado {$op: valor}.
// Es exactamente la forma que MongoDB entiende de manera nativa; el resto
// de adaptadores la traducen.
type Condition map[string]interface{}

// ConditionFromCriteria pliega la lista ordenada de criterios en una
// condición. Criterios posteriores sobre el mismo campo machacan a los
// anteriores (sin merge de operadores en conflicto).
func ConditionFromCriteria(criteria []Criterion) Condition {
	if len(criteria) == 0 {
		return nil
	}

	cond := Condition{}
	for _, c := range criteria {
		switch c.Op {
		case OpEq:
			v := c.Value.Native()
			if v == nil {
				// null/vacío equivale a "campo igual a cadena vacía"
				v = ""
			}
			cond[c.Field] = v
		case OpIn, OpNin:
			natives := make([]interface{}, 0, len(c.Values))
			for _, val := range c.Values {
				natives = append(natives, val.Native())
			}
			cond[c.Field] = map[string]interface{}{c.Op.Symbol(): natives}
		default:
			cond[c.Field] = map[string]interface{}{c.Op.Symbol(): c.Value.Native()}
		}
	}
	return cond
}

// ConditionFromFilter traduce el objeto JSON crudo del parámetro `filter`.
// Escalares → asignación directa; objetos {$op: val} → paso estructural.
// La propiedad `type` se excluye y se devuelve aparte como filtro de
// categoría. Devuelve además los campos descartados por forma inválida
// (arrays, null) para que el llamador los loguee.
func ConditionFromFilter(raw interface{}) (Condition, interface{}, []string) {
	obj, ok := raw.(map[string]interface{})
	if !ok || len(obj) == 0 {
		return nil, nil, nil
	}

	cond := Condition{}
	var category interface{}
	var dropped []string

	for field, val := range obj {
		if field == "type" {
			category = val
			continue
		}
		switch v := val.(type) {
		case string, float64, bool:
			cond[field] = v
		case map[string]interface{}:
			cond[field] = v
		default:
			dropped = append(dropped, field)
		}
	}

	if len(cond) == 0 {
		cond = nil
	}
	return cond, category, dropped
}

// ---------------- Evaluador en memoria ----------------

// Matches evalúa la condición sobre un documento. Es la semántica de
// referencia de Condition: el adaptador en memoria la usa siempre y los
// adaptadores SQL recurren a ella para los operadores que no pueden
// empujar al backend ($regex en SQLite).
//
// Campos ausentes siguen la semántica de MongoDB: $ne y $nin los aceptan,
// el resto de operadores no.
func (c Condition) Matches(doc Document) bool {
	if len(c) == 0 {
		return true
	}

	for field, spec := range c {
		val, present := doc[field]
		switch pred := spec.(type) {
		case map[string]interface{}:
			for sym, operand := range pred {
				if !matchOperator(sym, val, present, operand) {
					return false
				}
			}
		default:
			if !present || !looseEqual(val, spec) {
				return false
			}
		}
	}
	return true
}

func matchOperator(symbol string, val interface{}, present bool, operand interface{}) bool {
	switch symbol {
	case "$eq":
		return present && looseEqual(val, operand)
	case "$ne":
		return !present || !looseEqual(val, operand)
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false
		}
		ord, ok := compareValues(val, operand)
		if !ok {
			return false
		}
		switch symbol {
		case "$gt":
			return ord > 0
		case "$gte":
			return ord >= 0
		case "$lt":
			return ord < 0
		default:
			return ord <= 0
		}
	case "$in":
		return present && containsValue(operand, val)
	case "$nin":
		return !present || !containsValue(operand, val)
	case "$regex":
		if !present {
			return false
		}
		pattern, ok := operand.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(stringOf(val))
	}
	return false
}

// looseEqual compara con la laxitud de JSON: los números se comparan como
// float64 independientemente del tipo Go de origen.
func looseEqual(a, b interface{}) bool {
	if an, ok := numberOf(a); ok {
		bn, ok := numberOf(b)
		return ok && an == bn
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return a == nil && b == nil
}

// compareValues devuelve el orden (-1,0,1) cuando ambos valores son
// comparables: números entre sí o strings entre sí.
func compareValues(a, b interface{}) (int, bool) {
	if an, ok := numberOf(a); ok {
		if bn, ok := numberOf(b); ok {
			switch {
			case an < bn:
				return -1, true
			case an > bn:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), true
		}
	}
	return 0, false
}

func containsValue(operand, val interface{}) bool {
	list, ok := operand.([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		if looseEqual(val, item) {
			return true
		}
	}
	return false
}

func stringOf(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if n, ok := numberOf(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	if b, ok := v.(bool); ok {
		if b {
			return "true"
		}
		return "false"
	}
	return ""
}
