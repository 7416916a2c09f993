package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"imagevariants/internal/appctx"
	"imagevariants/internal/config"
	"imagevariants/internal/database"
	handlers "imagevariants/internal/http/handler"
	"imagevariants/internal/http/middleware"
	"imagevariants/internal/imageproc"
	"imagevariants/internal/lifecycle"
	"imagevariants/internal/model"
	"imagevariants/internal/otel"
	"imagevariants/internal/pathplan"
	"imagevariants/internal/publish"
	"imagevariants/internal/repository/postgres"
	"imagevariants/internal/service"
	"imagevariants/internal/storage"
)

func main() {
	ctx := context.Background()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.Local

	shutdownTracing, err := otel.Init(ctx, cfg.Tracing, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	schemas, err := config.LoadSchemas(cfg.Images.SchemaFile)
	if err != nil {
		log.Fatalf("failed to load image schemas: %v", err)
	}

	// Optional bucket mirror of every stored variant
	var mirror storage.Storage
	if cfg.MinIO.Enabled {
		mirror, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			log.Fatalf("failed to initialize object storage: %v", err)
		}
	}

	fs := afero.NewOsFs()

	var publisher publish.Publisher
	switch cfg.Images.PublishMode {
	case "bucket":
		if mirror == nil {
			log.Fatalf("PUBLISH_MODE=bucket requires MINIO_ENABLED=true")
		}
		publisher = publish.NewBucket(mirror)
	default:
		publisher = publish.NewSymlink(fs, cfg.Images.AssetsDir, cfg.Images.AssetsURL)
	}

	app := appctx.New(cfg.Images, publisher)
	registry := pathplan.NewRegistry(fs, app, pathplan.Options{
		RootAlias:    cfg.Images.RootAlias,
		ImagesFolder: cfg.Images.ImagesFolder,
		DirMode:      cfg.Images.DirMode,
	})

	manager, err := lifecycle.NewManager(fs, imageproc.NewTransformer(fs, cfg.Images.JPEGQuality), lifecycle.Options{
		Mirror:     mirror,
		Registerer: prometheus.DefaultRegisterer,
		DirMode:    cfg.Images.DirMode,
	})
	if err != nil {
		log.Fatalf("failed to initialize image manager: %v", err)
	}

	catalog := lifecycle.NewCatalog(schemas)
	hooks := lifecycle.NewHooks(catalog, registry, manager)

	// Resolve every path tree up front so layout errors stop the process
	for _, entity := range catalog.Entities() {
		if _, err := hooks.OnRecordInitialized(ctx, entity); err != nil {
			log.Fatalf("failed to plan image paths for %s: %v", entity, err)
		}
	}

	if cfg.Images.SchemaWatch {
		watcher, err := config.WatchSchemas(cfg.Images.SchemaFile, func(s []model.EntitySchema) {
			hooks.Reload(s)
		})
		if err != nil {
			log.Fatalf("failed to watch image schemas: %v", err)
		}
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	// Initialize PostgreSQL connection and make sure the records table exists
	db, err := database.Open(ctx, cfg.Database, loc)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	recordSvc := service.NewRecordService(postgres.NewRecordPostgres(db), hooks)

	server := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	server.Use(otelfiber.Middleware())
	server.Use(middleware.RequestID())
	server.Use(middleware.Logger())
	metrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}
	server.Use(metrics.Handler())

	handlers.RegisterRoutes(server, db, recordSvc, handlers.Options{
		Gatherer: prometheus.DefaultGatherer,
	})

	// The owner serves the store under its alias; other applications serve the published link.
	if app.IsOwner() {
		root, err := app.ResolveAlias("@" + cfg.Images.RootAlias)
		if err != nil {
			log.Fatalf("failed to resolve image root: %v", err)
		}
		server.Static("/"+cfg.Images.RootAlias, root)
	} else if cfg.Images.PublishMode != "bucket" {
		server.Static(cfg.Images.AssetsURL, cfg.Images.AssetsDir)
	}

	if err := server.Listen(":" + cfg.Port); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
