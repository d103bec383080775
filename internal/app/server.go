package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/vectora/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/vectora/internal/api/middlewares"
	"github.com/markdave123-py/vectora/internal/config"
	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/core/ingestion_engine"
	"github.com/markdave123-py/vectora/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// ServerDeps bundles everything the route handlers need.
type ServerDeps struct {
	DB          core.DbClient
	Documents   *services.DocumentService
	Collections *services.CollectionService
	Ledger      *services.LedgerService
	Sampler     *services.SamplerService
	Ingestor    *ingestion_engine.DocumentIngestor
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, deps *ServerDeps) *Server {
	authHandler := handlers.NewAuthHandler(deps.DB)
	docHandler := handlers.NewDocumentHandler(deps.Documents, deps.Ledger)
	colHandler := handlers.NewCollectionHandler(deps.Collections, deps.Ledger)
	ingHandler := handlers.NewIngestHandler(deps.Collections, deps.Ingestor, deps.Sampler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// collection listing admits anonymous callers; they see the public
		// subset only
		api.Group(func(open chi.Router) {
			open.Use(appMiddleware.OptionalJWTMiddleware)
			open.Get("/collections", colHandler.List)
			open.Get("/collections/{name}", colHandler.Get)
		})

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)
			protected.Use(middleware.Timeout(10 * time.Minute))

			protected.Post("/collections", colHandler.Create)
			protected.Patch("/collections/{name}", colHandler.Update)
			protected.Delete("/collections/{name}", colHandler.Delete)
			protected.Get("/collections/{name}/uploads", colHandler.Uploads)

			protected.Post("/collections/{name}/ingest", ingHandler.Ingest)
			protected.Post("/collections/{name}/sample", ingHandler.Sample)

			protected.Post("/documents/upload", docHandler.Upload)
			protected.Get("/documents", docHandler.List)
			protected.Get("/documents/{id}/uploads", docHandler.Uploads)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
