package domain

import (
	"strconv"
	"strings"
	"time"
)

// ---------------- Value ----------------

// ValueKind enumera los tipos cerrados que puede producir la coerción.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueNumber
	ValueBool
	ValueString
)

// Value es el tipo etiquetado que viaja desde el parser hasta la condición.
// Se produce una sola vez en la coerción; aguas abajo nadie vuelve a
// inspeccionar strings crudos.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Str  string
}

func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Kind: ValueBool, Bool: b} }
func StringValue(s string) Value  { return Value{Kind: ValueString, Str: s} }
func NullValue() Value            { return Value{Kind: ValueNull} }

// Native devuelve la representación que entienden los adaptadores de storage
// (float64, bool, string o nil).
func (v Value) Native() interface{} {
	switch v.Kind {
	case ValueNumber:
		return v.Num
	case ValueBool:
		return v.Bool
	case ValueString:
		return v.Str
	default:
		return nil
	}
}

// ---------------- Campos de fecha ----------------

// dateFields son los campos cuyo valor textual se interpreta como instante
// y se convierte a milisegundos de época durante la coerción.
var dateFields = map[string]bool{
	"date":        true,
	"srvModified": true,
	"srvCreated":  true,
}

// IsDateField indica si el campo participa en la coerción de fechas.
func IsDateField(field string) bool {
	return dateFields[field]
}

// parseTimestamp acepta RFC3339 (con o sin fracción) y fechas sueltas.
func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ---------------- Coerción ----------------

// CoerceValue convierte el valor crudo de un parámetro en un Value tipado.
// El orden importa: numérico primero (para que "0"/"1" no acaben como
// strings), después booleanos, literales entre comillas simples, el caso
// especial de campos de fecha y, como último recurso, el string crudo.
func CoerceValue(field, raw string) Value {
	if raw == "" {
		return NullValue()
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return NumberValue(n)
	}

	switch raw {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}

	if len(raw) >= 2 && strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") {
		return StringValue(raw[1 : len(raw)-1])
	}

	if IsDateField(field) {
		if t, ok := parseTimestamp(raw); ok {
			return NumberValue(float64(t.UnixMilli()))
		}
	}

	return StringValue(raw)
}

// CoerceValues coerce cada elemento de una lista separada por "|"
// (operadores in/nin).
func CoerceValues(field, raw string) []Value {
	parts := strings.Split(raw, "|")
	values := make([]Value, 0, len(parts))
	for _, p := range parts {
		values = append(values, CoerceValue(field, p))
	}
	return values
}

// ---------------- Helpers numéricos ----------------

// numberOf normaliza cualquier representación numérica que pueda venir de
// JSON o de los repos (float64, int64, int) a float64.
func numberOf(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
