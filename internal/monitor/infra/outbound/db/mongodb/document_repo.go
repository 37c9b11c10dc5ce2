// Package mongodb implementa el repositorio de documentos sobre MongoDB.
// La condición canónica ya tiene la forma nativa de Mongo, así que la
// traducción es directa: cada campo y su operador pasan tal cual al
// filtro, incluido $regex.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/vigilia/internal/monitor/domain"
)

type DocumentRepoMongoDB struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewDocumentRepoMongoDB es el constructor del repositorio.
func NewDocumentRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*DocumentRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	return &DocumentRepoMongoDB{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// coll devuelve la colección Mongo del recurso: cada tipo de documento
// vive en su propia colección, con _id = identifier.
func (r *DocumentRepoMongoDB) coll(res domain.Resource) *mongo.Collection {
	return r.db.Collection(res.Name)
}

func conditionToFilter(cond domain.Condition) bson.M {
	filter := bson.M{}
	for field, spec := range cond {
		filter[field] = spec
	}
	return filter
}

// withMongoID copia el documento añadiendo _id para que la clave primaria
// de Mongo haga de guardia de deduplicación.
func withMongoID(doc domain.Document) bson.M {
	out := bson.M{"_id": doc.Identifier()}
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// ------------------ Métodos ------------------

func (r *DocumentRepoMongoDB) List(ctx context.Context, res domain.Resource, cond domain.Condition, limit, offset int, ascending bool) ([]domain.Document, int, error) {
	filter := conditionToFilter(cond)

	total, err := r.coll(res).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	dir := 1 // Ascendente por defecto
	if !ascending {
		dir = -1
	}
	opts := options.Find().
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: res.SortField, Value: dir}})

	cursor, err := r.coll(res).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	docs := make([]domain.Document, 0)
	for cursor.Next(ctx) {
		var doc domain.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		delete(doc, "_id")
		docs = append(docs, doc)
	}

	return docs, int(total), nil
}

func (r *DocumentRepoMongoDB) GetByIdentifier(ctx context.Context, res domain.Resource, identifier string) (domain.Document, error) {
	var doc domain.Document
	err := r.coll(res).FindOne(ctx, bson.M{"_id": identifier}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}

	delete(doc, "_id")
	return doc, nil
}

func (r *DocumentRepoMongoDB) Create(ctx context.Context, res domain.Resource, doc domain.Document) error {
	_, err := r.coll(res).InsertOne(ctx, withMongoID(doc))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDocumentAlreadyExists
		}
		return err
	}
	return nil
}

func (r *DocumentRepoMongoDB) Update(ctx context.Context, res domain.Resource, identifier string, doc domain.Document) error {
	result, err := r.coll(res).ReplaceOne(ctx, bson.M{"_id": identifier}, doc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepoMongoDB) Delete(ctx context.Context, res domain.Resource, identifier string) error {
	result, err := r.coll(res).DeleteOne(ctx, bson.M{"_id": identifier})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
