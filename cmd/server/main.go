package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apparel-service/config"
	"apparel-service/internal/api"
	"apparel-service/internal/broker"
	"apparel-service/internal/imagestore"
	"apparel-service/internal/redisclient"
	"apparel-service/internal/service"
	"apparel-service/internal/store"
	"apparel-service/internal/util"
	"apparel-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting apparel service")

	tp, err := util.InitTracer("apparel-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	var images imagestore.ImageStore
	if cfg.Storage.GCSBucket != "" {
		gcs, err := imagestore.NewGCSStore(context.Background(), cfg.Storage.GCSBucket, cfg.Storage.ImagePrefix)
		if err != nil {
			log.Fatalf("Failed to open image store: %v", err)
		}
		defer gcs.Close()
		images = gcs
		log.Printf("Image store on bucket %s", cfg.Storage.GCSBucket)
	} else {
		log.Println("No GCS bucket configured, image uploads disabled")
	}

	ledger := service.NewInventoryLedger(db, redisClient, eventPublisher, cfg.Business.LowStockThreshold)
	customerService := service.NewCustomerService(db)
	productService := service.NewProductService(db, ledger, images)
	orderService := service.NewOrderService(db, ledger, redisClient, eventPublisher)
	preOrderService := service.NewPreOrderService(db, orderService, ledger, eventPublisher)
	invoiceService := service.NewInvoiceService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	stockConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	lowStockWorker := worker.NewLowStockWorker(stockConsumer, redisClient, cfg.Business.LowStockThreshold)
	go func() {
		if err := lowStockWorker.Start(workerCtx); err != nil {
			log.Printf("Low-stock worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(customerService, productService, orderService, preOrderService, invoiceService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	lowStockWorker.Stop()

	log.Println("Server exited")
}
