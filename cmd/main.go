package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swadhan-eats/configs"
	"swadhan-eats/internal/handlers"
	"swadhan-eats/internal/middleware"
	"swadhan-eats/internal/models"
	"swadhan-eats/internal/repositories"
	"swadhan-eats/internal/services"
	"swadhan-eats/pkg/auth"
	"swadhan-eats/pkg/cache"
	"swadhan-eats/pkg/database"
	"swadhan-eats/pkg/messaging"
	"swadhan-eats/pkg/sms"

	"github.com/gin-gonic/gin"
)

func main() {
	config := configs.LoadConfig()
	gin.SetMode(config.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(config.Database.PostgresURL, config.Database.MongoURL, config.Database.MongoDBName, config.Server.Mode == gin.DebugMode)
	if err != nil {
		log.Fatal("Failed to connect to databases:", err)
	}
	defer db.Close()

	if err := db.Migrate(&models.User{}, &models.Cart{}, &models.Order{}, &models.OrderItem{}, &models.Payment{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	redisCache := cache.NewRedisCache(config.Redis.URL, config.Redis.Password, config.Redis.DB)
	if redisCache == nil {
		log.Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	jwtManager := auth.NewJWTManager(config.JWT.SecretKey, config.JWT.AccessExpiry, config.JWT.RefreshExpiry)

	// Repositories
	userRepo := repositories.NewUserRepository(db.Postgres)
	orderRepo := repositories.NewOrderRepository(db.Postgres)
	paymentRepo := repositories.NewPaymentRepository(db.Postgres)

	var cartRepo repositories.CartSnapshotRepository
	switch config.Checkout.CartStore {
	case "postgres":
		cartRepo = repositories.NewCartRepository(db.Postgres)
	default:
		cartRepo = repositories.NewRedisCartRepository(redisCache)
	}
	log.Printf("Cart snapshots stored in %s", config.Checkout.CartStore)

	var dishRepo repositories.DishRepository
	if db.MongoDB != nil {
		dishRepo = repositories.NewDishRepository(db.MongoDB)
	}

	var events messaging.Publisher
	if config.Kafka.Enabled {
		producer := messaging.NewKafkaProducer(config.Kafka.Brokers)
		defer producer.Close()
		events = producer
	} else {
		log.Println("Kafka disabled, order events will not be published")
	}

	// Services
	rates := services.BillingRates{TaxRate: config.Checkout.TaxRate, DeliveryFee: config.Checkout.DeliveryFee}

	authService := services.NewAuthService(userRepo, jwtManager, redisCache)
	razorpayService := services.NewRazorpayService(services.RazorpayOptions{
		KeyID:         config.Razorpay.KeyID,
		KeySecret:     config.Razorpay.KeySecret,
		WebhookSecret: config.Razorpay.WebhookSecret,
		BaseURL:       config.Razorpay.BaseURL,
		Currency:      config.Checkout.Currency,
		Offline:       config.Razorpay.Offline,
	}, paymentRepo, orderRepo)
	cartService := services.NewCartService(cartRepo, dishRepo, rates)
	orderService := services.NewOrderService(orderRepo, paymentRepo, userRepo, dishRepo, cartRepo, razorpayService, events, rates)
	mockPayments := services.NewMockPaymentService(config.Checkout.MockPaymentDelay, config.Checkout.MockSuccessRate, time.Now().UnixNano())
	checkoutService := services.NewCheckoutService(cartService, orderService, razorpayService, mockPayments, authService, services.CheckoutOptions{
		UPIPayeeVPA:       config.Checkout.UPIPayeeVPA,
		UPIPayeeName:      config.Checkout.UPIPayeeName,
		Currency:          config.Checkout.Currency,
		GatewayRetryLimit: config.Checkout.GatewayRetryLimit,
	})

	sweeper := services.NewCronService(orderService, config.Checkout.SweepInterval, config.Checkout.PendingOrderTTL)
	sweeper.WatchIdle(config.Checkout.SessionIdleTTL, cartService, checkoutService)
	if err := sweeper.Start(); err != nil {
		log.Fatal("Failed to start cron service:", err)
	}
	defer sweeper.Stop()

	if config.Kafka.Enabled && config.SMS.Enabled {
		notifications := services.NewNotificationService(sms.NewSMSService(config.SMS.APIKey, config.SMS.SenderID, config.SMS.BaseURL))
		consumer := messaging.NewKafkaConsumer(config.Kafka.Brokers, config.Kafka.GroupID)
		defer consumer.Close()
		go consumer.ConsumeMessages(ctx, messaging.TopicNotificationEvents, func(payload []byte) error {
			return notifications.HandleNotification(ctx, payload)
		})
	}

	// HTTP
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.CORSMiddleware(config.Server.AllowedOrigins))

	checks := map[string]handlers.HealthCheck{
		"postgres": db.PingPostgres,
		"redis":    redisCache.Ping,
	}
	if db.MongoDB != nil {
		checks["mongodb"] = db.PingMongo
	}
	handlers.NewHealthHandler("swadhan-eats", checks).RegisterRoutes(router)

	api := router.Group("/api/v1")
	handlers.NewAuthHandler(authService).RegisterRoutes(api, authMiddleware)
	handlers.NewCartHandler(cartService).RegisterRoutes(api, authMiddleware)
	handlers.NewCheckoutHandler(checkoutService).RegisterRoutes(api, authMiddleware)
	handlers.NewOrderHandler(orderService).RegisterRoutes(api, authMiddleware)
	handlers.NewRazorpayHandler(orderService).RegisterRoutes(api)
	if dishRepo != nil {
		handlers.NewMenuHandler(dishRepo).RegisterRoutes(api)
	}

	server := &http.Server{
		Addr:              ":" + config.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
