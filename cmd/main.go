package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"enablehub/internal/auth"
	"enablehub/internal/config"
	"enablehub/internal/handler"
	"enablehub/internal/preview"
	"enablehub/internal/repository"
	"enablehub/internal/service"
	"enablehub/internal/service/s3"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// Сначала подключаемся к системной базе postgres
	pgDSN := strings.Replace(dsn, "dbname=enablehub", "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Проверяем, существует ли база данных enablehub
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = 'enablehub')")
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	if !exists {
		log.Println("Database enablehub does not exist, creating...")
		_, err = pgDB.Exec("CREATE DATABASE enablehub")
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Инициализация проверки токенов
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	auth.Init(authConfig)

	// Инициализация репозиториев
	assetRepo := repository.NewAssetRepository(db)
	shareLinkRepo := repository.NewShareLinkRepository(db)

	// Инициализация сервисов
	assetService := service.NewAssetService(assetRepo, shareLinkRepo)
	lifecycleService := service.NewLifecycleService(assetRepo)
	shareLinkService := service.NewShareLinkService(shareLinkRepo, assetRepo)
	accessService := service.NewAccessService(shareLinkRepo)
	eventService := service.NewEventService(shareLinkRepo)
	previewService := preview.NewService(s3Client, db)
	previewService.StartCleanupTask()

	// Инициализация хендлеров
	assetHandler := handler.NewAssetHandler(assetService, lifecycleService)
	shareAdminHandler := handler.NewShareAdminHandler(shareLinkService, appConfig.Server.BaseURL)
	sharePublicHandler := handler.NewSharePublicHandler(shareLinkService, accessService, eventService, s3Client)
	previewHandler := preview.NewHandler(previewService, shareLinkService, accessService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("Incoming request: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	// Публичные маршруты по токену ссылки
	r.Route("/s/{token}", func(r chi.Router) {
		r.Get("/", sharePublicHandler.ResolveShareLink)
		r.Post("/events", sharePublicHandler.RecordEvent)
		r.Post("/verify", sharePublicHandler.VerifyRecipient)
		r.Get("/preview", previewHandler.GetPreview)
	})

	// Административные маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/assets", assetHandler.CreateAsset)
		r.Route("/assets/{id}", func(r chi.Router) {
			r.Get("/", assetHandler.GetAsset)
			r.Delete("/", assetHandler.DeleteAsset)
			r.Post("/versions", assetHandler.CreateVersion)
			r.Get("/versions", assetHandler.ListVersions)
		})

		r.Route("/versions/{id}", func(r chi.Router) {
			r.Post("/publish", assetHandler.PublishVersion)
			r.Post("/schedule", assetHandler.ScheduleVersion)
			r.Post("/unschedule", assetHandler.UnscheduleVersion)
			r.Post("/expire", assetHandler.ExpireVersion)
			r.Post("/archive", assetHandler.ArchiveVersion)
		})

		r.Route("/shares", func(r chi.Router) {
			r.Post("/", shareAdminHandler.CreateShareLink)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", shareAdminHandler.RevokeShareLink)
				r.Post("/recipients", shareAdminHandler.InviteRecipient)
				r.Get("/events", shareAdminHandler.ListEvents)
			})
		})
	})

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Запускаем публикацию и протухание версий по расписанию.
	// Тикер слушает собственный канал останова: сигнал из quit должен
	// достаться только главной горутине.
	publishTicker := time.NewTicker(1 * time.Minute)
	tickerDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-publishTicker.C:
				ctx := context.Background()
				if err := lifecycleService.PublishDue(ctx); err != nil {
					log.Printf("Error during scheduled publish run: %v", err)
				}
				if err := lifecycleService.ExpireDue(ctx); err != nil {
					log.Printf("Error during scheduled expire run: %v", err)
				}
			case <-tickerDone:
				publishTicker.Stop()
				return
			}
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	log.Println("Shutting down server...")
	close(tickerDone)

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
