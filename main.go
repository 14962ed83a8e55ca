package main

import (
	"database/sql"
	"fmt"
	"log"

	"pickup-service/config"
	"pickup-service/internal/handler"
	"pickup-service/internal/messaging"
	"pickup-service/internal/repository"
	"pickup-service/internal/service"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.LoadConfig("config/config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Connect to RabbitMQ
	rmq, err := messaging.NewRabbitMQ(
		cfg.RabbitMQ.Host,
		cfg.RabbitMQ.Port,
		cfg.RabbitMQ.User,
		cfg.RabbitMQ.Password,
	)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rmq.Close()
	log.Println("Connected to RabbitMQ")

	// Socket hub
	hub := messaging.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Repositories
	store := repository.NewSQLStore(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// Outbox worker drains committed events into RabbitMQ
	outboxWorker := messaging.NewOutboxWorker(outboxRepo, rmq)
	outboxWorker.Start()
	defer outboxWorker.Stop()

	// Event consumer pushes events onto the socket hub
	consumer := messaging.NewEventConsumer(rmq, hub)
	consumer.Start()
	defer consumer.Stop()
	log.Println("Event consumer started")

	// Services
	lifecycleService := service.NewLifecycleService(store, userRepo, notificationRepo)
	statsService := service.NewStatsService(store)
	notificationService := service.NewNotificationService(notificationRepo)

	// Handlers
	pickupHandler := handler.NewPickupHandler(lifecycleService)
	statsHandler := handler.NewStatsHandler(statsService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	wsHandler := handler.NewWSHandler(hub, cfg.JWT.Secret)

	// Setup Gin
	r := gin.Default()

	r.GET("/health", pickupHandler.Health)
	r.GET("/ws", wsHandler.Connect)

	api := r.Group("/api", handler.ActorMiddleware())

	pickups := api.Group("/pickups")
	{
		pickups.POST("", handler.RequireRole("admin"), pickupHandler.Schedule)
		pickups.GET("", pickupHandler.List)
		pickups.GET("/:id", pickupHandler.GetByID)
		pickups.PATCH("/:id/start", handler.RequireRole("collector"), pickupHandler.Start)
		pickups.PATCH("/:id/complete", handler.RequireRole("collector"), pickupHandler.Complete)
		pickups.PATCH("/:id/cancel", handler.RequireRole("admin", "collector"), pickupHandler.Cancel)
		pickups.PATCH("/:id/reschedule", handler.RequireRole("admin"), pickupHandler.Reschedule)
		pickups.GET("/collector/:collectorId/schedule", handler.RequireRole("admin", "collector"), pickupHandler.CollectorSchedule)
	}

	collectors := api.Group("/collectors")
	{
		collectors.GET("/:id/stats", statsHandler.CollectorStats)
		collectors.GET("/:id/performance", statsHandler.CollectorPerformance)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.GetNotifications)
		notifications.PATCH("/:id/read", notificationHandler.MarkAsRead)
		notifications.PATCH("/read-all", notificationHandler.MarkAllAsRead)
	}

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Pickup service starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
