package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/term"

	"tenantql/internal/api"
	"tenantql/internal/config"
	"tenantql/internal/data"
	"tenantql/internal/llm"
	"tenantql/internal/logger"
	"tenantql/internal/service"
)

func main() {
	// Check for CLI subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "reset-password":
			handleResetPassword(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		default:
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printHelp()
			os.Exit(1)
		}
	}

	startServer()
}

func printHelp() {
	fmt.Println("tenantql - Multi-Tenant SQL/LLM Query Platform")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tenantql                           Start the server")
	fmt.Println("  tenantql reset-password -e <email>  Reset user password (interactive)")
	fmt.Println("  tenantql help                      Show this help")
}

func handleResetPassword(args []string) {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	email := fs.String("e", "", "Email of the user to reset")
	fs.Parse(args)

	if *email == "" {
		fmt.Println("Usage: tenantql reset-password -e <email>")
		os.Exit(1)
	}

	fmt.Print("New password: ")
	passBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Printf("Failed to read password: %v\n", err)
		os.Exit(1)
	}
	password := string(passBytes)

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Printf("Failed to read password: %v\n", err)
		os.Exit(1)
	}

	if password != string(confirmBytes) {
		fmt.Println("Passwords do not match.")
		os.Exit(1)
	}
	if password == "" {
		fmt.Println("Password cannot be empty.")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := data.InitDB(ctx, cfg.PlatformDBPath)
	if err != nil {
		fmt.Printf("Failed to init database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	userRepo := data.NewUserRepo(db)
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.AccessTokenTTL)

	if err := authSvc.ResetPassword(ctx, *email, password); err != nil {
		fmt.Printf("Failed to reset password: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Password for user '%s' has been reset successfully.\n", *email)
}

func startServer() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\nCheck .env file or TENANTQL_KEY environment variable.\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	if err := logger.Init(cfg.LogDir); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.L.Infow("starting tenantql")

	// 3. Initialize platform store
	ctx := context.Background()
	db, err := data.InitDB(ctx, cfg.PlatformDBPath)
	if err != nil {
		logger.L.Fatalw("failed to init platform database", "err", err)
	}
	defer db.Close()

	// 4. Repos
	userRepo := data.NewUserRepo(db)
	connRepo := data.NewConnectionRepo(db)
	logRepo := data.NewQueryLogRepo(db)

	if users, err := userRepo.Count(ctx); err == nil {
		logger.L.Infow("platform store ready", "path", cfg.PlatformDBPath, "users", users)
	}

	// 5. Services, wired explicitly: no globals, every collaborator injected
	vault, err := service.NewVault(cfg.MasterKey)
	if err != nil {
		logger.L.Fatalw("failed to init credential vault", "err", err)
	}

	registry := service.NewConnectionRegistry(connRepo, vault)
	broker := service.NewConnectionBroker(registry, vault)
	executor := service.NewTenantQueryExecutor(broker, registry, logRepo, cfg.QueryTimeout)
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.AccessTokenTTL)

	// LLM capability decided once at startup: real client or null object.
	var completion llm.CompletionClient = llm.DisabledClient{}
	if cfg.LLMEnabled {
		completion = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		logger.L.Infow("llm queries enabled", "model", cfg.OpenAIModel)
	} else {
		logger.L.Infow("llm queries disabled")
	}
	llmSvc := llm.NewService(completion, executor, logRepo, cfg.SampleRowLimit)

	// 6. Handlers
	authHandler := api.NewAuthHandler(authSvc)
	connHandler := api.NewConnectionHandler(registry, broker, executor)
	queryHandler := api.NewQueryHandler(executor, llmSvc, logRepo, cfg.QueryLogDefault)

	// 7. Router
	r := chi.NewRouter()
	r.Use(api.LoggingMiddleware)

	loginLimiter := api.NewRateLimiter(5, 3)  // brute force protection
	apiLimiter := api.NewRateLimiter(60, 10)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(loginLimiter.Middleware).Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(authSvc))
			r.Use(apiLimiter.MiddlewareByUser)
			r.Mount("/connections", connHandler.Routes())
			r.Mount("/queries", queryHandler.Routes())
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.L.Infow("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.Fatalw("server startup failed", "err", err)
		}
	}()

	<-stop
	logger.L.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Errorw("server shutdown error", "err", err)
	}
	logger.L.Infow("server stopped")
}
