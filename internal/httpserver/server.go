package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/blackmichael/music-feeds/internal/config"
	"github.com/blackmichael/music-feeds/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Server is the HTTP server that serves feed generator XRPC endpoints.
type Server struct {
	cfg         *config.Config
	feedService *domain.FeedService
	logger      *slog.Logger
	httpServer  *http.Server
}

// NewServer creates a new HTTP server with the given feed service.
func NewServer(cfg *config.Config, feedService *domain.FeedService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		feedService: feedService,
		logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/did.json", s.handleDIDDoc)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.describeFeedGenerator", s.handleDescribeFeedGenerator)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.getFeedSkeleton", s.handleGetFeedSkeleton)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withRequestLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDIDDoc(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, didDocument{
		Context: []string{"https://www.w3.org/ns/did/v1"},
		ID:      s.cfg.ServiceDID(),
		Service: []didService{{
			ID:              "#bsky_fg",
			Type:            "BskyFeedGenerator",
			ServiceEndpoint: "https://" + s.cfg.Hostname,
		}},
	})
}

func (s *Server) handleDescribeFeedGenerator(w http.ResponseWriter, _ *http.Request) {
	desc := s.feedService.Describe(s.cfg.ServiceDID())

	resp := describeResponse{DID: desc.DID, Feeds: make([]describeFeed, len(desc.Feeds))}
	for i, f := range desc.Feeds {
		resp.Feeds[i] = describeFeed{URI: f.URI}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	feedURI := r.URL.Query().Get("feed")
	if feedURI == "" {
		s.logger.Warn("getFeedSkeleton called without feed parameter")
		writeError(w, http.StatusBadRequest, "InvalidRequest", "feed parameter is required")
		return
	}

	feed, err := domain.ParseATURI(feedURI)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "could not parse feed")
		return
	}
	if feed.DID != s.cfg.PublisherDID || feed.Collection != domain.GeneratorCollection {
		writeError(w, http.StatusBadRequest, "UnknownFeed", "unsupported algorithm")
		return
	}

	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxLimit {
			s.logger.Warn("invalid limit parameter", "limit", l, "error", err)
			writeError(w, http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("limit must be between 1 and %d", maxLimit))
			return
		}
		limit = parsed
	}

	cursor := r.URL.Query().Get("cursor")

	skeleton, err := s.feedService.GetFeedSkeleton(r.Context(), feedURI, limit, cursor)
	switch {
	case errors.Is(err, domain.ErrUnknownFeed):
		writeError(w, http.StatusBadRequest, "UnknownFeed", "unsupported algorithm")
		return
	case errors.Is(err, domain.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed cursor")
		return
	case err != nil:
		s.logger.Error("failed to get feed skeleton",
			"feed", feedURI,
			"limit", limit,
			"cursor", cursor,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get feed")
		return
	}

	s.logger.Debug("getFeedSkeleton success", "feed", feedURI, "posts_returned", len(skeleton.Posts), "next_cursor", skeleton.Cursor)

	resp := skeletonResponse{
		Cursor: skeleton.Cursor,
		Feed:   make([]skeletonItem, len(skeleton.Posts)),
	}
	for i, p := range skeleton.Posts {
		resp.Feed[i] = skeletonItem{Post: p.Post}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, errorResponse{Error: errType, Message: message})
}

const requestIDHeader = "X-Request-Id"

func withRequestLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
