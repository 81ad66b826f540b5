package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm/logger"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/handlers"
	"github.com/pulsewatch/pulsewatch/internal/jobs"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/middleware"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting PulseWatch engine...")

	// Initialize JWT authentication middleware
	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	// Hash the admin password
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuth := middleware.NewJWTAuth(middleware.AuthConfig{
		Username:     cfg.AdminUsername,
		PasswordHash: passwordHash,
		Secret:       cfg.JWTSecret,
		TokenTTL:     time.Duration(cfg.JWTExpiryHours) * time.Hour,
		SkipPaths: []string{
			"/health",
			"/cron/*",
			"/ws/*",
			"/auth/login",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	store := database.NewStore(db)

	// Optional Redis metrics recorder
	recorder := metrics.Connect(cfg.RedisAddr, cfg.RedisPassword)
	if recorder != nil {
		log.Printf("Check metrics recording to Redis at %s", cfg.RedisAddr)
	} else {
		log.Printf("Check metrics recording disabled (REDIS_ADDR not set)")
	}

	// Notification dispatch: Slack when a token is configured, logging otherwise
	var dispatcher notify.Dispatcher
	if cfg.SlackToken != "" {
		dispatcher = notify.NewSlackDispatcher(cfg.SlackToken, cfg.SlackChannel)
		log.Printf("Notification dispatch via Slack channel %s", cfg.SlackChannel)
	} else {
		dispatcher = notify.NewLogDispatcher()
		log.Printf("Notification dispatch via log only (SLACK_BOT_TOKEN not set)")
	}

	// Status feed WebSocket hub, fed by the propagator
	statusFeed := handlers.NewStatusFeedHandler()

	propagator := services.NewStatusPropagator(store)
	propagator.OnTransition(statusFeed.Broadcast)

	// Engine jobs
	scheduler := jobs.NewCheckScheduler(store, propagator, metricsOrNil(recorder), jobs.CheckSchedulerConfig{
		BatchLimit: cfg.Engine.CheckBatchLimit,
		Pacing:     time.Duration(cfg.Engine.CheckPacingMS) * time.Millisecond,
		RunBudget:  time.Duration(cfg.Engine.CheckRunBudgetSeconds) * time.Second,
	})
	escalator := jobs.NewEscalationDriver(store, dispatcher, jobs.EscalationDriverConfig{
		BatchLimit:      cfg.Engine.EscalationBatchLimit,
		RunBudget:       time.Duration(cfg.Engine.EscalationBudgetSeconds) * time.Second,
		DispatchTimeout: time.Duration(cfg.Engine.DispatchTimeoutSeconds) * time.Second,
	})

	// In-process cron triggers; the HTTP cron endpoints stay available for
	// external schedulers
	scheduleRunner := cron.New()
	if _, err := scheduleRunner.AddFunc(cfg.CheckCronSpec, func() {
		if _, err := scheduler.Run(); err != nil {
			log.Printf("Scheduled check run failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Invalid CHECK_CRON spec %q: %v", cfg.CheckCronSpec, err)
	}
	if _, err := scheduleRunner.AddFunc(cfg.EscalationCronSpec, func() {
		if _, err := escalator.Run(); err != nil {
			log.Printf("Scheduled escalation run failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Invalid ESCALATION_CRON spec %q: %v", cfg.EscalationCronSpec, err)
	}
	scheduleRunner.Start()
	log.Printf("In-process triggers: checks %q, escalations %q", cfg.CheckCronSpec, cfg.EscalationCronSpec)

	// Initialize handlers
	httpHandler := handlers.NewHTTPHandler()
	cronHandler := handlers.NewCronHandler(scheduler, escalator, cfg.CronSecret)
	apiHandler := handlers.NewAPIHandler(scheduler, escalator, store)
	authHandler := handlers.NewAuthHandler(jwtAuth)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	cronHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)
	statusFeed.SetupRoutes(mux)

	// Wrap all routes with CORS middleware first, then JWT authentication
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(jwtAuth.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Engine is running! Press Ctrl+C to exit.")
	log.Printf("Cron trigger endpoints: http://localhost:%d/cron/{checks,escalations}", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal, cleaning up...")

	cronCtx := scheduleRunner.Stop()
	<-cronCtx.Done()

	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	log.Println("Shutdown complete")
}

// metricsOrNil keeps a typed-nil *metrics.Recorder out of the scheduler's
// interface field
func metricsOrNil(r *metrics.Recorder) jobs.MetricsRecorder {
	if r == nil {
		return nil
	}
	return r
}
