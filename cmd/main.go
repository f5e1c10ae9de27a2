package main

import (
	"log"

	"scan-service/internal/config"
	"scan-service/internal/correction"
	"scan-service/internal/handlers"
	"scan-service/internal/models"
	"scan-service/internal/repository"
	"scan-service/internal/services"
	"scan-service/internal/services/cache"
	"scan-service/internal/services/caches"
	"scan-service/internal/storage"
	"scan-service/internal/utils"
	"scan-service/internal/viewer"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const memoryCacheBytes = 256 << 20

func main() {
	cfg := InitConfig()
	db := ConnectDatabase(cfg)
	MigrateDatabase(db)
	minioClient := InitMinIOClient(cfg)

	store := storage.NewMinioStore(minioClient, cfg)
	repo := repository.NewScanRepository(db)
	metrics := utils.NewMetrics()

	// Memory first, Redis second; Redis is optional.
	layers := []cache.MeshCache{caches.NewMemoryCache(memoryCacheBytes, cfg.CacheTTL)}
	if cfg.RedisHost != "" {
		redisClient, err := storage.NewRedisClient(cfg.RedisHost, cfg.RedisPort)
		if err != nil {
			log.Printf("Redis unavailable, running with memory cache only: %v", err)
		} else {
			layers = append(layers, caches.NewRedisCache(redisClient, cfg.CacheTTL))
		}
	}

	dispatcher := correction.NewDispatcher(cfg.CorrectionEndpoint)
	if !dispatcher.Configured() {
		log.Println("CORRECTION_ENDPOINT not set, auto correction disabled")
	}

	scanService := services.NewScanService(repo, store, layers, dispatcher, metrics)

	app := fiber.New(fiber.Config{
		BodyLimit: 110 << 20, // validation enforces the 100 MiB mesh cap
	})

	//Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	sh := handlers.NewScanHandler(scanService)
	vh := handlers.NewViewerHandler(scanService, viewer.NewSessionManager(), metrics)

	api := app.Group("/api/scans")

	// Scan store: per-patient mesh records by type
	api.Get("/patients/:patientId/scans", sh.ListScans)
	api.Get("/patients/:patientId/scans/:type", sh.GetCurrentScan)
	api.Post("/patients/:patientId/scans/:type", sh.UploadScan)
	api.Get("/scans/:id/download", sh.DownloadScan)
	api.Delete("/scans/:id", sh.DeleteScan)

	// Correction dispatch and staging
	api.Post("/patients/:patientId/corrections", sh.RunCorrection)
	api.Post("/corrections/:token/promote", sh.PromoteCorrection)
	api.Delete("/corrections/:token", sh.DiscardCorrection)

	// Viewer sessions and landmark annotation
	api.Post("/patients/:patientId/viewer-sessions", vh.CreateSession)
	api.Get("/viewer-sessions/:id/scene", vh.GetScene)
	api.Put("/viewer-sessions/:id/camera", vh.UpdateCamera)
	api.Delete("/viewer-sessions/:id", vh.CloseSession)
	api.Post("/viewer-sessions/:id/pointer-down", vh.PointerDown)
	api.Post("/viewer-sessions/:id/pointer-up", vh.PointerUp)
	api.Get("/viewer-sessions/:id/landmarks", vh.ListLandmarks)
	api.Get("/viewer-sessions/:id/landmarks/export", vh.ExportLandmarks)
	api.Delete("/viewer-sessions/:id/landmarks/:landmarkId", vh.RemoveLandmark)
	api.Delete("/viewer-sessions/:id/landmarks", vh.ClearLandmarks)

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Add Health check endpoint
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	routes := app.GetRoutes()
	log.Println("Registered routes:")
	for _, r := range routes {
		log.Printf("  %s %s\n", r.Method, r.Path)
	}

	// Start the Fiber server
	port := cfg.AppPort
	if port == "" {
		port = "8080"
		log.Printf("Defaulting to port %s", port)
	}
	log.Printf("Server listening on port %s", port)
	log.Fatal(app.Listen(":" + port))
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

func MigrateDatabase(db *gorm.DB) {
	err := db.AutoMigrate(&models.Scan{})
	if err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
}

func InitMinIOClient(cfg *config.Config) *minio.Client {
	minioClient, err := storage.NewMinioClient(cfg)
	if err != nil {
		log.Fatalf("MinIO client initialization failed: %v", err)
	}
	return minioClient
}
