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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Brunomssil/design_platform/internal/audit"
	"github.com/Brunomssil/design_platform/internal/auth"
	"github.com/Brunomssil/design_platform/internal/config"
	"github.com/Brunomssil/design_platform/internal/es"
	"github.com/Brunomssil/design_platform/internal/handlers"
	"github.com/Brunomssil/design_platform/internal/hash"
	"github.com/Brunomssil/design_platform/internal/logging"
	authmw "github.com/Brunomssil/design_platform/internal/middleware/auth"
	"github.com/Brunomssil/design_platform/internal/middleware/loggingmw"
	"github.com/Brunomssil/design_platform/internal/mykafka"
	"github.com/Brunomssil/design_platform/internal/repo"
	"github.com/Brunomssil/design_platform/internal/tokens"
	httpserver "github.com/Brunomssil/design_platform/internal/transport/http"
)

const designIndex = "designs"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	if configuration.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET is not configured")
	}
	jwtSecret := []byte(configuration.JWT_SECRET)

	logger := logging.New(configuration.LOG_LEVEL)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, configuration)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(es.Config{
		URL:      configuration.ES_URL,
		User:     configuration.ES_USER,
		Password: configuration.ES_PASSWORD,
	})
	if err != nil {
		log.Fatalf("elasticsearch init error: %v", err)
	}

	engine := auth.NewEngine(
		&repo.UserRepo{DB: db},
		&repo.RefreshTokenRepo{DB: db},
		hash.Argon2Hasher{},
		tokens.NewIssuer(jwtSecret),
	)

	auditPub := &audit.Publisher{Events: prod}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{
			Engine:    engine,
			JWTSecret: jwtSecret,
			Producer:  prod,
			Audit:     auditPub,
		},
		DesignHandler: &handlers.DesignHandler{
			DB:       db,
			ES:       esClient,
			Index:    designIndex,
			Producer: prod,
		},
		SearchHandler: &handlers.SearchHandler{ES: esClient, Index: designIndex},
		AuthMW:        &authmw.Middleware{JWTSecret: jwtSecret},
	})

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
