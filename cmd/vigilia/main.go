package main

import (
	"context"
	"database/sql"

	config "github.com/davicafu/vigilia/internal/config"
	"github.com/davicafu/vigilia/internal/monitor/application"
	"github.com/davicafu/vigilia/internal/monitor/domain"
	monitorHttp "github.com/davicafu/vigilia/internal/monitor/infra/inbound/http"
	monitorCache "github.com/davicafu/vigilia/internal/monitor/infra/outbound/cache"
	memoryRepo "github.com/davicafu/vigilia/internal/monitor/infra/outbound/db/memory"
	mongodbRepo "github.com/davicafu/vigilia/internal/monitor/infra/outbound/db/mongodb"
	postgresRepo "github.com/davicafu/vigilia/internal/monitor/infra/outbound/db/postgres"
	sqliteRepo "github.com/davicafu/vigilia/internal/monitor/infra/outbound/db/sqlite"
	monitorEvents "github.com/davicafu/vigilia/internal/monitor/infra/outbound/events"

	sharedBus "github.com/davicafu/vigilia/internal/shared/platform/bus"
	sharedCache "github.com/davicafu/vigilia/internal/shared/platform/cache"
	"github.com/davicafu/vigilia/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL
	// _ "github.com/mattn/go-sqlite3" // requires gcc
	_ "modernc.org/sqlite"
)

const serverVersion = "1.0.0"

// ---------------- Main ----------------
func main() {
	logger.Init()          // inicializa zap
	log := logger.Logger() // obtiene logger estructurado
	defer log.Sync()       // flush buffers al salir

	ctx := context.Background()
	cfg := config.LoadConfig()

	// ---------------- Storage ----------------
	var repo domain.DocumentRepository

	switch cfg.StorageBackend {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()

		if err := sqliteRepo.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping SQLite", zap.Error(err))
		}
		repo = sqliteRepo.NewDocumentRepoSQLite(db)

	case "postgres":
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open PostgreSQL", zap.Error(err))
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping PostgreSQL", zap.Error(err))
		}
		if err := postgresRepo.InitPostgresSchema(db); err != nil {
			log.Fatal("failed to initialize PostgreSQL", zap.Error(err))
		}
		repo = postgresRepo.NewDocumentRepoPostgres(db)

	case "mongodb":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer client.Disconnect(ctx)

		mongoRepo, err := mongodbRepo.NewDocumentRepoMongoDB(ctx, client, cfg.MongoDB)
		if err != nil {
			log.Fatal("failed to initialize MongoDB", zap.Error(err))
		}
		repo = mongoRepo

	default:
		repo = memoryRepo.NewDocumentRepoInMemory()
	}

	log.Info("🗄️ Storage backend listo", zap.String("backend", cfg.StorageBackend))

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria:", zap.Error(err))
		cacheInstance = monitorCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
	} else {
		cacheInstance = monitorCache.NewRedisCache(rdb, cfg.CacheTTL)
		log.Info("✅ Redis conectado, cache habilitado")
	}

	// ---------------- Events ---------------
	var publisher sharedBus.EventPublisher

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos")

		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		defer writer.Close()

		publisher = monitorEvents.NewKafkaPublisher(writer, log)
	} else {
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")

		bus := monitorEvents.NewInMemoryEventBus()
		publisher = bus

		storageEvents := bus.Subscribe(10)
		log.Info("🎧 Iniciando listener en memoria para eventos de almacenamiento")
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case evt := <-storageEvents:
					log.Debug("Evento de almacenamiento recibido", zap.Any("event", evt))
				}
			}
		}()
	}

	// --------------- Servicio --------------
	documentService := application.NewDocumentService(repo, cacheInstance, publisher, log)

	// ---------------- HTTP ----------------
	documentHandler := monitorHttp.NewDocumentHandler(documentService, log, serverVersion, cfg.StorageBackend)
	router := gin.Default()
	monitorHttp.RegisterAPIRoutes(router, documentHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server: %v", zap.Error(err))
	}
}
