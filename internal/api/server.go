package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autoguardian/negotiator/internal/listing"
	"github.com/autoguardian/negotiator/internal/negotiation"
)

// ListingSource resolves the negotiable view of a listing.
type ListingSource interface {
	GetListing(ctx context.Context, id int64) (listing.Listing, error)
}

// NegotiationSource lists an owner's completed negotiations.
type NegotiationSource interface {
	ListingNegotiations(ctx context.Context, listingID int64) ([]*negotiation.Session, error)
}

type Server struct {
	router       *chi.Mux
	port         int
	engine       *negotiation.Engine
	listings     ListingSource
	negotiations NegotiationSource
}

func NewServer(port int, apiToken string, engine *negotiation.Engine, listings ListingSource, negotiations NegotiationSource) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:       router,
		port:         port,
		engine:       engine,
		listings:     listings,
		negotiations: negotiations,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/negotiator/status", s.status)

	// Public: anonymous buyers negotiate without an account.
	router.Post("/api/v1/listings/{listingID}/negotiate", s.negotiate)

	// Owner-side surface.
	router.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/api/v1/listings/{listingID}/negotiations", s.listNegotiations)
		r.Post("/api/v1/negotiations/{negotiationID}/accept", s.accept)
		r.Post("/api/v1/negotiations/{negotiationID}/reject", s.reject)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "negotiator",
		"status":  "ok",
	})
}

// BearerAuthMiddleware guards owner-side endpoints with a static token.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get("Authorization") != "Bearer "+token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
