// Package postgres implementa el repositorio de documentos sobre
// PostgreSQL con una columna JSONB y las condiciones traducidas a
// expresiones data->>'campo' con el cast que pida el operando.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL

	"github.com/davicafu/vigilia/internal/monitor/domain"
)

// psql construye sentencias con placeholders $1, $2...
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type DocumentRepoPostgres struct {
	db *sql.DB
}

func NewDocumentRepoPostgres(db *sql.DB) *DocumentRepoPostgres {
	return &DocumentRepoPostgres{db: db}
}

// ------------------ Traducción de condiciones ------------------

// fieldExpr produce la expresión SQL de un campo con el cast adecuado al
// tipo del operando: data->>'f' devuelve texto, así que los números y
// booleanos necesitan cast para comparar con su semántica nativa. Para
// operandos lista ($in/$nin) decide el primer elemento.
func fieldExpr(field string, operand interface{}) string {
	if vals, ok := operand.([]interface{}); ok && len(vals) > 0 {
		operand = vals[0]
	}

	text := fmt.Sprintf("data->>'%s'", strings.ReplaceAll(field, "'", "''"))
	switch operand.(type) {
	case float64, float32, int, int32, int64:
		return "(" + text + ")::numeric"
	case bool:
		return "(" + text + ")::boolean"
	default:
		return text
	}
}

// translateCondition convierte la condición canónica en predicados
// squirrel. A diferencia de SQLite, $regex sí se empuja al backend (~ de
// PostgreSQL); solo los símbolos desconocidos quedan como residuo para
// evaluar en memoria.
func translateCondition(cond domain.Condition) (squirrel.And, domain.Condition) {
	var exprs squirrel.And
	residual := domain.Condition{}

	for field, spec := range cond {
		ops, ok := spec.(map[string]interface{})
		if !ok {
			exprs = append(exprs, squirrel.Eq{fieldExpr(field, spec): spec})
			continue
		}

		for op, operand := range ops {
			expr := fieldExpr(field, operand)
			switch op {
			case "$eq":
				exprs = append(exprs, squirrel.Eq{expr: operand})
			case "$ne":
				exprs = append(exprs, squirrel.Or{
					squirrel.Eq{expr: nil},
					squirrel.NotEq{expr: operand},
				})
			case "$gt":
				exprs = append(exprs, squirrel.Gt{expr: operand})
			case "$gte":
				exprs = append(exprs, squirrel.GtOrEq{expr: operand})
			case "$lt":
				exprs = append(exprs, squirrel.Lt{expr: operand})
			case "$lte":
				exprs = append(exprs, squirrel.LtOrEq{expr: operand})
			case "$in":
				exprs = append(exprs, squirrel.Eq{expr: operand}) // soporta slice
			case "$nin":
				exprs = append(exprs, squirrel.Or{
					squirrel.Eq{expr: nil},
					squirrel.NotEq{expr: operand},
				})
			case "$regex":
				if pattern, ok := operand.(string); ok {
					exprs = append(exprs, squirrel.Expr(expr+" ~ ?", pattern))
				}
			default:
				sub, _ := residual[field].(map[string]interface{})
				if sub == nil {
					sub = map[string]interface{}{}
					residual[field] = sub
				}
				sub[op] = operand
			}
		}
	}

	return exprs, residual
}

// ------------------ Métodos ------------------

func (r *DocumentRepoPostgres) List(ctx context.Context, res domain.Resource, cond domain.Condition, limit, offset int, ascending bool) ([]domain.Document, int, error) {
	exprs, residual := translateCondition(cond)
	pushdown := len(residual) == 0

	builder := psql.Select("data").
		From("documents").
		Where(squirrel.Eq{"collection": res.Name})
	if len(exprs) > 0 {
		builder = builder.Where(exprs)
	}

	dir := "ASC"
	if !ascending {
		dir = "DESC"
	}
	// data->'campo' conserva el tipo jsonb, que ordena números como
	// números y cadenas como cadenas
	sortKey := strings.ReplaceAll(res.SortField, "'", "''")
	builder = builder.OrderBy(fmt.Sprintf("data->'%s' %s", sortKey, dir))

	if pushdown {
		builder = builder.Limit(uint64(limit)).Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, err
		}

		var doc domain.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, 0, fmt.Errorf("invalid JSON in documents row: %w", err)
		}

		if !pushdown && !residual.Matches(doc) {
			continue
		}
		docs = append(docs, doc)
	}

	if pushdown {
		total, err := r.count(ctx, res.Name, exprs)
		if err != nil {
			return nil, 0, err
		}
		return docs, total, nil
	}

	total := len(docs)
	if offset >= total {
		return []domain.Document{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return docs[offset:end], total, nil
}

func (r *DocumentRepoPostgres) count(ctx context.Context, collection string, exprs squirrel.And) (int, error) {
	builder := psql.Select("COUNT(*)").
		From("documents").
		Where(squirrel.Eq{"collection": collection})
	if len(exprs) > 0 {
		builder = builder.Where(exprs)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *DocumentRepoPostgres) GetByIdentifier(ctx context.Context, res domain.Resource, identifier string) (domain.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND identifier = $2`,
		res.Name, identifier,
	)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON in documents row: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepoPostgres) Create(ctx context.Context, res domain.Resource, doc domain.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (collection, identifier, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, identifier) DO NOTHING`,
		res.Name, doc.Identifier(), payload,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentAlreadyExists
	}
	return nil
}

func (r *DocumentRepoPostgres) Update(ctx context.Context, res domain.Resource, identifier string, doc domain.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET data = $1 WHERE collection = $2 AND identifier = $3`,
		payload, res.Name, identifier,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepoPostgres) Delete(ctx context.Context, res domain.Resource, identifier string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND identifier = $2`,
		res.Name, identifier,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ------------------ Inicialización del Esquema ------------------

// InitPostgresSchema crea la tabla documents si no existe.
func InitPostgresSchema(db *sql.DB) error {
	_, err := db.Exec(`
    CREATE TABLE IF NOT EXISTS documents (
        collection TEXT NOT NULL,
        identifier TEXT NOT NULL,
        data JSONB NOT NULL,
        PRIMARY KEY (collection, identifier)
    )`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}
