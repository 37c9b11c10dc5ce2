package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperator(t *testing.T) {
	op, ok := ParseOperator("gte")
	assert.True(t, ok)
	assert.Equal(t, OpGte, op)
	assert.Equal(t, "$gte", op.Symbol())

	_, ok = ParseOperator("like")
	assert.False(t, ok)

	re, ok := ParseOperator("re")
	assert.True(t, ok)
	assert.Equal(t, "$regex", re.Symbol())
}

func TestConditionFromCriteria(t *testing.T) {
	cond := ConditionFromCriteria([]Criterion{
		{Field: "carbs", Op: OpGte, Value: NumberValue(15)},
		{Field: "category", Op: OpEq, Value: StringValue("Fruit")},
		{Field: "device", Op: OpIn, Values: []Value{StringValue("xdrip"), StringValue("loop")}},
	})

	assert.Equal(t, Condition{
		"carbs":    map[string]interface{}{"$gte": 15.0},
		"category": "Fruit",
		"device":   map[string]interface{}{"$in": []interface{}{"xdrip", "loop"}},
	}, cond)
}

func TestConditionFromCriteria_UltimoGana(t *testing.T) {
	// criterios posteriores sobre el mismo campo machacan a los anteriores
	cond := ConditionFromCriteria([]Criterion{
		{Field: "sgv", Op: OpGte, Value: NumberValue(100)},
		{Field: "sgv", Op: OpLt, Value: NumberValue(200)},
	})

	assert.Equal(t, Condition{
		"sgv": map[string]interface{}{"$lt": 200.0},
	}, cond)
}

func TestConditionFromCriteria_NullEsCadenaVacia(t *testing.T) {
	cond := ConditionFromCriteria([]Criterion{
		{Field: "notes", Op: OpEq, Value: NullValue()},
	})
	assert.Equal(t, Condition{"notes": ""}, cond)
}

func TestConditionFromCriteria_Vacia(t *testing.T) {
	assert.Nil(t, ConditionFromCriteria(nil))
}

// La traducción de criterios y la del objeto filter crudo deben producir
// condiciones estructuralmente iguales para el mismo predicado lógico.
func TestRoundTrip_CriteriosContraFilterCrudo(t *testing.T) {
	fromCriteria := ConditionFromCriteria([]Criterion{
		{Field: "carbs", Op: OpGte, Value: NumberValue(15)},
		{Field: "category", Op: OpEq, Value: StringValue("Fruit")},
	})

	var rawFilter interface{}
	require.NoError(t, json.Unmarshal(
		[]byte(`{"carbs":{"$gte":15},"category":"Fruit"}`), &rawFilter))
	fromFilter, category, dropped := ConditionFromFilter(rawFilter)

	assert.Equal(t, fromCriteria, fromFilter)
	assert.Nil(t, category)
	assert.Empty(t, dropped)
}

func TestConditionFromFilter(t *testing.T) {
	var raw interface{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "sgv",
		"sgv": {"$gt": 100},
		"device": "xdrip",
		"broken": [1, 2],
		"missing": null
	}`), &raw))

	cond, category, dropped := ConditionFromFilter(raw)

	assert.Equal(t, "sgv", category)
	assert.Equal(t, Condition{
		"sgv":    map[string]interface{}{"$gt": 100.0},
		"device": "xdrip",
	}, cond)
	assert.ElementsMatch(t, []string{"broken", "missing"}, dropped)
}

func TestConditionFromFilter_NoObjeto(t *testing.T) {
	cond, category, dropped := ConditionFromFilter("no soy un objeto")
	assert.Nil(t, cond)
	assert.Nil(t, category)
	assert.Nil(t, dropped)

	cond, _, _ = ConditionFromFilter(nil)
	assert.Nil(t, cond)
}

// ---------------- Matches ----------------

func TestCondition_Matches(t *testing.T) {
	doc := Document{
		"sgv":       120,
		"type":      "sgv",
		"device":    "xdrip",
		"eventType": "Bolus Wizard",
	}

	tests := []struct {
		name     string
		cond     Condition
		expected bool
	}{
		{
			name:     "condición vacía acepta todo",
			cond:     nil,
			expected: true,
		},
		{
			name:     "igualdad escalar",
			cond:     Condition{"type": "sgv"},
			expected: true,
		},
		{
			name:     "igualdad numérica laxa entre tipos",
			cond:     Condition{"sgv": 120.0},
			expected: true,
		},
		{
			name:     "igualdad escalar sobre campo ausente falla",
			cond:     Condition{"ghost": "x"},
			expected: false,
		},
		{
			name:     "gt",
			cond:     Condition{"sgv": map[string]interface{}{"$gt": 100.0}},
			expected: true,
		},
		{
			name:     "gte en el límite",
			cond:     Condition{"sgv": map[string]interface{}{"$gte": 120.0}},
			expected: true,
		},
		{
			name:     "lt falla",
			cond:     Condition{"sgv": map[string]interface{}{"$lt": 100.0}},
			expected: false,
		},
		{
			name:     "gt sobre campo ausente falla",
			cond:     Condition{"ghost": map[string]interface{}{"$gt": 1.0}},
			expected: false,
		},
		{
			name:     "ne con valor distinto",
			cond:     Condition{"type": map[string]interface{}{"$ne": "mbg"}},
			expected: true,
		},
		{
			name:     "ne sobre campo ausente acepta (semántica Mongo)",
			cond:     Condition{"ghost": map[string]interface{}{"$ne": "x"}},
			expected: true,
		},
		{
			name:     "in",
			cond:     Condition{"type": map[string]interface{}{"$in": []interface{}{"sgv", "mbg"}}},
			expected: true,
		},
		{
			name:     "nin excluye",
			cond:     Condition{"type": map[string]interface{}{"$nin": []interface{}{"sgv"}}},
			expected: false,
		},
		{
			name:     "nin sobre campo ausente acepta",
			cond:     Condition{"ghost": map[string]interface{}{"$nin": []interface{}{"x"}}},
			expected: true,
		},
		{
			name:     "regex",
			cond:     Condition{"eventType": map[string]interface{}{"$regex": "^Bolus"}},
			expected: true,
		},
		{
			name:     "regex sin match",
			cond:     Condition{"eventType": map[string]interface{}{"$regex": "^Temp"}},
			expected: false,
		},
		{
			name:     "operador desconocido nunca casa",
			cond:     Condition{"sgv": map[string]interface{}{"$near": 120.0}},
			expected: false,
		},
		{
			name: "varios campos en AND",
			cond: Condition{
				"type": "sgv",
				"sgv":  map[string]interface{}{"$gte": 100.0},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cond.Matches(doc))
		})
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"name": "Pera", "portion": 120},
		{"name": "Manzana", "portion": 80},
		{"portion": 50}, // sin campo de orden
	}

	SortDocuments(docs, "name", true)
	assert.Equal(t, 50, docs[0]["portion"]) // ausente ordena primero
	assert.Equal(t, "Manzana", docs[1]["name"])
	assert.Equal(t, "Pera", docs[2]["name"])

	SortDocuments(docs, "portion", false)
	assert.Equal(t, 120, docs[0]["portion"])
	assert.Equal(t, 80, docs[1]["portion"])
	assert.Equal(t, 50, docs[2]["portion"])
}
