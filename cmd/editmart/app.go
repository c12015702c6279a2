package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/agamariel/editmart/internal/auth"
	"github.com/agamariel/editmart/internal/clock"
	"github.com/agamariel/editmart/internal/config"
	"github.com/agamariel/editmart/internal/gateway"
	"github.com/agamariel/editmart/internal/handlers"
	"github.com/agamariel/editmart/internal/migrations"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/notify"
	"github.com/agamariel/editmart/internal/services"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// App структура для управления приложением и его зависимостями.
type App struct {
	cfg       *config.Config
	dbPool    *pgxpool.Pool
	echo      *echo.Echo
	scheduler *services.Scheduler

	// Handlers
	userHandler        *handlers.UserHandler
	orderHandler       *handlers.OrderHandler
	applicationHandler *handlers.ApplicationHandler
	walletHandler      *handlers.WalletHandler
	paymentHandler     *handlers.PaymentHandler
	adminHandler       *handlers.AdminHandler
}

// NewApp создаёт и инициализирует новое приложение.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		cfg: cfg,
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initDependencies()
	app.initServer()

	return app, nil
}

// initDatabase инициализирует подключение к базе данных и выполняет миграции.
func (app *App) initDatabase(ctx context.Context) error {
	if app.cfg.DatabaseURI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}

	// Применение миграций
	log.Println("Running database migrations...")
	sqlDB, err := sql.Open("pgx", app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to open database connection: %w", err)
	}
	defer sqlDB.Close()

	if err := migrations.Run(sqlDB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Migrations completed successfully")

	// Подключение к базе данных через pgxpool
	dbPool, err := pgxpool.New(ctx, app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}

	app.dbPool = dbPool
	log.Println("Successfully connected to database")

	return nil
}

// initDependencies инициализирует все зависимости приложения (storage, services, handlers).
func (app *App) initDependencies() {
	logger := log.Default()
	clk := clock.System{}
	mcfg := app.cfg.Marketplace

	// Storage layer
	userStorage := storage.NewPostgresUserStorage(app.dbPool)
	orderStorage := storage.NewPostgresOrderStorage(app.dbPool)
	appStorage := storage.NewPostgresApplicationStorage(app.dbPool)
	walletStorage := storage.NewPostgresWalletStorage(app.dbPool)
	txStorage := storage.NewPostgresTransactionStorage(app.dbPool)
	paymentStorage := storage.NewPostgresPaymentStorage(app.dbPool)
	withdrawalStorage := storage.NewPostgresWithdrawalStorage(app.dbPool)
	fileStorage := storage.NewPostgresFileStorage(app.dbPool)

	// Внешние зависимости
	gatewayClient := gateway.NewHTTPClient(app.cfg.GatewayAddress, app.cfg.GatewaySecret, 5*time.Second)
	notifier := notify.NewLogNotifier(logger)

	// Service layer
	userService := services.NewUserService(userStorage, walletStorage, app.cfg.JWTSecret, app.cfg.TokenExpiration)
	orderService := services.NewOrderService(app.dbPool, orderStorage, userStorage, mcfg, clk)
	applicationService := services.NewApplicationService(app.dbPool, appStorage, orderStorage, notifier, mcfg, clk, logger)
	ledgerService := services.NewLedgerService(app.dbPool, walletStorage, txStorage, withdrawalStorage, paymentStorage, orderStorage, notifier, mcfg, clk, logger)
	paymentService := services.NewPaymentService(app.dbPool, paymentStorage, orderStorage, appStorage, walletStorage, txStorage, gatewayClient, mcfg, clk, logger)

	// Планировщик фоновых проверок
	app.scheduler = services.NewScheduler(app.dbPool, orderStorage, appStorage, fileStorage, orderService, ledgerService, services.NewLogBlobRemover(logger), notifier, mcfg, clk, logger)

	// Handler layer
	app.userHandler = handlers.NewUserHandler(userService)
	app.orderHandler = handlers.NewOrderHandler(orderService)
	app.applicationHandler = handlers.NewApplicationHandler(applicationService)
	app.walletHandler = handlers.NewWalletHandler(ledgerService)
	app.paymentHandler = handlers.NewPaymentHandler(paymentService, ledgerService)
	app.adminHandler = handlers.NewAdminHandler(app.scheduler)
}

// initServer инициализирует HTTP-сервер и настраивает маршруты.
func (app *App) initServer() {
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE},
	}))

	// Публичные маршруты (не требуют аутентификации)
	e.POST("/api/user/register", app.userHandler.Register)
	e.POST("/api/user/login", app.userHandler.Login)

	// Колбэки платёжного шлюза подтверждаются подписью, а не токеном
	e.POST("/api/payments/escrow/confirm", app.paymentHandler.ConfirmEscrow)
	e.POST("/api/payments/deposit/confirm", app.paymentHandler.ConfirmDeposit)

	// Защищённые маршруты (требуют аутентификации)
	protected := e.Group("/api")
	protected.Use(auth.JWTMiddleware(app.cfg.JWTSecret))

	protected.POST("/orders", app.orderHandler.Create, auth.RequireRole(models.RoleCreator, models.RoleAdmin))
	protected.GET("/orders", app.orderHandler.List)
	protected.GET("/orders/:id", app.orderHandler.Get)
	protected.PATCH("/orders/:id/status", app.orderHandler.UpdateStatus)
	protected.POST("/orders/:id/assign", app.orderHandler.AssignEditor, auth.RequireRole(models.RoleCreator, models.RoleAdmin))
	protected.POST("/orders/:id/revision", app.orderHandler.RequestRevision, auth.RequireRole(models.RoleCreator, models.RoleAdmin))

	protected.POST("/orders/:id/applications", app.applicationHandler.Apply, auth.RequireRole(models.RoleEditor))
	protected.GET("/orders/:id/applications", app.applicationHandler.ListForOrder)
	protected.POST("/orders/:id/applications/:appID/approve", app.applicationHandler.Approve, auth.RequireRole(models.RoleCreator, models.RoleAdmin))

	protected.POST("/orders/:id/payment", app.paymentHandler.InitiateEscrow, auth.RequireRole(models.RoleCreator, models.RoleAdmin))
	protected.POST("/orders/:id/deposit", app.paymentHandler.InitiateDeposit, auth.RequireRole(models.RoleEditor))

	protected.GET("/balance", app.walletHandler.GetBalance)
	protected.GET("/balance/transactions", app.walletHandler.GetTransactions)
	protected.POST("/balance/withdraw", app.walletHandler.Withdraw)
	protected.GET("/withdrawals", app.walletHandler.GetWithdrawals)

	// Административные маршруты
	admin := protected.Group("/admin", auth.RequireRole(models.RoleAdmin))
	admin.POST("/reconcile", app.adminHandler.Reconcile)
	admin.POST("/withdrawals/:id/process", app.walletHandler.ProcessWithdrawal)
	admin.POST("/payments/:id/release", app.paymentHandler.ReleasePayment)

	app.echo = e
}

// Start запускает приложение.
func (app *App) Start(ctx context.Context) error {
	// Запуск планировщика
	log.Println("Starting reconciliation scheduler...")
	app.scheduler.StartAll(ctx)
	log.Println("Reconciliation scheduler started")

	// Запуск сервера
	log.Printf("Starting server on %s", app.cfg.RunAddress)
	if err := app.echo.Start(app.cfg.RunAddress); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}

// Shutdown корректно завершает работу приложения.
func (app *App) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	app.scheduler.StopAll()

	if err := app.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if app.dbPool != nil {
		app.dbPool.Close()
	}

	log.Println("Server gracefully stopped")
	return nil
}
