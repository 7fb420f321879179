package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malwarebo/invoicer/api"
	"github.com/malwarebo/invoicer/cache"
	"github.com/malwarebo/invoicer/config"
	dbsetup "github.com/malwarebo/invoicer/config/db"
	"github.com/malwarebo/invoicer/db"
	"github.com/malwarebo/invoicer/middleware"
	"github.com/malwarebo/invoicer/notifications"
	"github.com/malwarebo/invoicer/providers"
	"github.com/malwarebo/invoicer/security"
	"github.com/malwarebo/invoicer/services"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/utils"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Example: `  # Start with settings from config/config.json, .env and the environment
  invoicer serve

  # Apply pending migrations first
  invoicer serve --migrate`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	utils.SetupLogger("invoicer", utils.LogConfig{
		Level:  cfg.Monitoring.LogLevel,
		Format: cfg.Monitoring.LogFormat,
	})
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	printBanner()
	fmt.Println()

	printStep("1/9", "Loading configuration...")
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Configuration loaded (%s)", cfg.Environment))

	printStep("2/9", "Validating configuration...")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	printSuccess("Configuration validation passed")

	printStep("3/9", "Connecting to database...")
	database, err := dbsetup.CreateDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	printSuccess(fmt.Sprintf("Connected to PostgreSQL at %s:%d", cfg.Database.Host, cfg.Database.Port))

	if serveMigrate {
		applied, err := db.CreateSchemaMigrator(database.GetDB()).Up()
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		printSuccess(fmt.Sprintf("Applied %d migration(s)", len(applied)))
	}

	printStep("4/9", "Connecting to Redis...")
	var redisCache *cache.RedisCache
	if cfg.Redis.Host != "" {
		redisCache, err = cache.CreateRedisCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			MinIdle:  cfg.Redis.MinIdle,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil && cfg.Notifications.Backend == config.NotificationBackendRedis {
			return fmt.Errorf("failed to connect to Redis required by the notification queue: %w", err)
		}
		if err != nil {
			printWarning(fmt.Sprintf("Failed to connect to Redis: %v (continuing with in-process cache)", err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			printSuccess(fmt.Sprintf("Connected to Redis at %s", cfg.GetRedisAddr()))
		}
	} else {
		printInfo("Redis not configured, using in-process cache")
	}

	var metricsCache cache.Cache = cache.CreateMemoryCache(64)
	if redisCache != nil {
		metricsCache = redisCache
	}

	printStep("5/9", "Initializing security components...")
	jwtManager := security.CreateJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTAudience)
	var rateLimiter *security.RateLimiter
	if !cfg.Security.RateLimitOff {
		rateLimiter = security.CreateRateLimiter(security.RateLimitConfig{
			RequestsPerSecond: cfg.Security.RateLimitRPS,
			Burst:             cfg.Security.RateLimitBurst,
		})
		defer rateLimiter.Close()
		printSuccess(fmt.Sprintf("Rate limiting at %.0f req/s per client (burst %d)", cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst))
	} else {
		printWarning("Rate limiting disabled")
	}

	printStep("6/9", "Initializing Stripe...")
	stripeProvider := providers.CreateStripeProvider(providers.StripeConfig{
		SecretKey:     cfg.Stripe.Secret,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if stripeProvider.WebhookMode() == providers.WebhookModeInsecure {
		if cfg.IsProduction() {
			return errors.New("STRIPE_WEBHOOK_SECRET is required in production")
		}
		printWarning("STRIPE_WEBHOOK_SECRET not set, webhook signatures will NOT be verified")
	}
	printSuccess(fmt.Sprintf("Stripe Checkout ready (%s)", cfg.Stripe.Currency))

	printStep("7/9", "Starting notification workers...")
	var queue notifications.Queue
	if cfg.Notifications.Backend == config.NotificationBackendRedis {
		queue = notifications.CreateRedisQueue(redisCache.Client(), notifications.DefaultRedisKey)
	} else {
		queue = notifications.CreateMemoryQueue(cfg.Notifications.QueueSize)
	}
	defer queue.Close()

	var mailer notifications.Mailer = notifications.CreateLogMailer()
	if cfg.Mail.Host != "" {
		mailer = notifications.CreateSMTPMailer(notifications.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	} else {
		printWarning("SMTP_HOST not set, emails will be logged instead of sent")
	}

	dispatcher := notifications.CreateDispatcher(queue, mailer, cfg.Notifications.Workers)
	dispatcher.Start(context.Background())
	printSuccess(fmt.Sprintf("%d worker(s) on the %s queue", cfg.Notifications.Workers, cfg.Notifications.Backend))

	printStep("8/9", "Initializing services...")
	gdb := database.GetDB()
	invoiceStore := stores.CreateInvoiceStore(gdb)
	clientStore := stores.CreateClientStore(gdb)
	webhookStore := stores.CreateWebhookStore(gdb)
	numberer := services.CreateInvoiceNumberer(stores.CreateTransactor(gdb), stores.CreateSequenceStore(gdb))
	links := services.NewLinks(cfg.App.PublicBaseURL)

	invoiceService := services.CreateInvoiceService(invoiceStore, clientStore, numberer, cfg.App.PaymentTermDays)
	dashboardService := services.CreateDashboardService(invoiceStore, metricsCache)
	invoiceService.OnChange(dashboardService.Invalidate)

	paymentService := services.CreatePaymentService(invoiceStore, stripeProvider, cfg.Stripe.Currency, links)
	webhookService := services.CreateWebhookService(stripeProvider, invoiceService, webhookStore, queue, cfg.Stripe.Currency, links)
	renderer := services.CreateInvoicePDFRenderer(cfg.Stripe.Currency, links)
	printSuccess("Services initialized")

	printStep("9/9", "Setting up HTTP server...")
	health := api.CreateHealthHandler(database)
	if redisCache != nil {
		health.AddCheck("redis", redisCache)
	}

	router := api.NewRouter(api.Handlers{
		Clients:   api.CreateClientHandler(services.CreateClientService(clientStore)),
		Invoices:  api.CreateInvoiceHandler(invoiceService, renderer),
		Public:    api.CreatePublicHandler(invoiceService, paymentService, renderer),
		Webhooks:  api.CreateWebhookHandler(webhookService),
		Dashboard: api.CreateDashboardHandler(dashboardService),
		Health:    health,
	}, middleware.CreateAuthMiddleware(jwtManager, rateLimiter), api.RouterConfig{
		AllowedOrigins: cfg.Security.AllowedOrigins,
	})

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	printSuccess("HTTP server configured")

	fmt.Println()
	fmt.Printf("%s%s🎉 Invoicer is ready!%s\n", colorGreen, colorBold, colorReset)
	fmt.Println()
	printField("Environment", cfg.Environment)
	printField("Server Port", cfg.Server.Port)
	printField("Public URL", cfg.App.PublicBaseURL)
	printField("Webhook", cfg.App.PublicBaseURL+"/webhooks/stripe ("+string(stripeProvider.WebhookMode())+")")
	fmt.Println()
	fmt.Printf("%s%sPress Ctrl+C to stop the server%s\n", colorYellow, colorBold, colorReset)
	fmt.Println()

	serverErr := make(chan error, 1)
	go func() {
		printInfo(fmt.Sprintf("Starting HTTP server on port %s...", cfg.Server.Port))
		var err error
		if cfg.Server.EnableTLS {
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		dispatcher.Stop()
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	fmt.Println()
	printWarning("Shutting down invoicer...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		dispatcher.Stop()
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	dispatcher.Stop()

	printSuccess("Invoicer stopped gracefully")
	return nil
}
