package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kuldevta/estate-api/config"
	"github.com/kuldevta/estate-api/internal/db"
	"github.com/kuldevta/estate-api/internal/handlers"
	"github.com/kuldevta/estate-api/internal/logger"
	"github.com/kuldevta/estate-api/internal/mq"
	"github.com/kuldevta/estate-api/internal/services"
	"github.com/kuldevta/estate-api/internal/store"
)

// Server wraps the HTTP server and its external connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logger.Named("server")

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := openQueue(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	adminRepo := store.NewAdminRepository(dbConn)
	listingRepo := store.NewListingRepository(dbConn)
	leadRepo := store.NewLeadRepository(dbConn)

	adminService := services.NewAdminService(adminRepo, config.AuthFromEnv)
	listingService := services.NewListingService(listingRepo)

	var publisher services.LeadPublisher
	if queue != nil {
		publisher = queue
	}
	leadService := services.NewLeadService(leadRepo, listingRepo, publisher)

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		if queue != nil {
			_ = queue.Close()
		}
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, adminService, jwtSecret)
	})
	router.Route("/listings", func(r chi.Router) {
		handlers.ListingRouter(r, listingService, authMiddleware)
	})
	router.Route("/leads", func(r chi.Router) {
		handlers.LeadRouter(r, leadService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server configured",
		zap.Int("port", port),
		zap.String("mq_backend", cfg.MQ.Backend))

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

func openQueue(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch cfg.Backend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
