// Package sqlite implementa el repositorio de documentos sobre SQLite,
// con los documentos serializados como JSON y las condiciones traducidas
// a expresiones json_extract.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	"github.com/davicafu/vigilia/internal/monitor/domain"
)

type DocumentRepoSQLite struct {
	db *sql.DB
}

func NewDocumentRepoSQLite(db *sql.DB) *DocumentRepoSQLite {
	return &DocumentRepoSQLite{db: db}
}

// ------------------ Traducción de condiciones ------------------

// fieldExpr produce la expresión json_extract de un campo. El nombre del
// campo viene de la query string del cliente, así que se escapan las
// comillas simples antes de interpolarlo en la ruta JSON.
func fieldExpr(field string) string {
	return fmt.Sprintf("json_extract(data, '$.%s')", strings.ReplaceAll(field, "'", "''"))
}

// translateCondition convierte la condición canónica en predicados
// squirrel. Los operadores que SQLite no puede evaluar ($regex, y
// cualquier símbolo desconocido llegado por un filter crudo) se devuelven
// como condición residual para evaluarla en memoria sobre las filas ya
// recuperadas.
//
// Los campos ausentes en el JSON producen NULL en json_extract; $ne y
// $nin deben aceptarlos, así que esos predicados llevan un IS NULL
// alternativo.
func translateCondition(cond domain.Condition) (squirrel.And, domain.Condition) {
	var exprs squirrel.And
	residual := domain.Condition{}

	for field, spec := range cond {
		expr := fieldExpr(field)

		ops, ok := spec.(map[string]interface{})
		if !ok {
			exprs = append(exprs, squirrel.Eq{expr: spec})
			continue
		}

		for op, operand := range ops {
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

// List consulta la colección aplicando la condición, el orden y la
// ventana de paginación. Si la condición tiene parte residual, la
// paginación se aplica en memoria tras el filtrado completo para que la
// ventana y el total sigan siendo coherentes.
func (r *DocumentRepoSQLite) List(ctx context.Context, res domain.Resource, cond domain.Condition, limit, offset int, ascending bool) ([]domain.Document, int, error) {
	exprs, residual := translateCondition(cond)
	pushdown := len(residual) == 0

	builder := squirrel.Select("data").
		From("documents").
		Where(squirrel.Eq{"collection": res.Name})
	if len(exprs) > 0 {
		builder = builder.Where(exprs)
	}

	dir := "ASC"
	if !ascending {
		dir = "DESC"
	}
	builder = builder.OrderBy(fmt.Sprintf("%s %s", fieldExpr(res.SortField), dir))

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
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, err
		}

		var doc domain.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
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

func (r *DocumentRepoSQLite) count(ctx context.Context, collection string, exprs squirrel.And) (int, error) {
	builder := squirrel.Select("COUNT(*)").
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

func (r *DocumentRepoSQLite) GetByIdentifier(ctx context.Context, res domain.Resource, identifier string) (domain.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND identifier = ?`,
		res.Name, identifier,
	)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON in documents row: %w", err)
	}
	return doc, nil
}

// Create inserta el documento. La clave primaria (collection, identifier)
// hace de guardia de deduplicación: un conflicto no inserta nada y se
// reporta como ErrDocumentAlreadyExists.
func (r *DocumentRepoSQLite) Create(ctx context.Context, res domain.Resource, doc domain.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (collection, identifier, data) VALUES (?, ?, ?)
		 ON CONFLICT (collection, identifier) DO NOTHING`,
		res.Name, doc.Identifier(), string(payload),
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

func (r *DocumentRepoSQLite) Update(ctx context.Context, res domain.Resource, identifier string, doc domain.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET data = ? WHERE collection = ? AND identifier = ?`,
		string(payload), res.Name, identifier,
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

func (r *DocumentRepoSQLite) Delete(ctx context.Context, res domain.Resource, identifier string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND identifier = ?`,
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

// ------------------ Inicialización de DB ------------------

// InitSQLite crea la tabla documents si no existe
func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS documents (
            collection TEXT NOT NULL,
            identifier TEXT NOT NULL,
            data TEXT NOT NULL,
            PRIMARY KEY (collection, identifier)
        )
    `)
	return err
}
