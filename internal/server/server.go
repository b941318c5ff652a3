// Package server exposes food classification, scoring, enrichment and the
// food log as tools over a small HTTP endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"mcp-food-score/internal/config"
	"mcp-food-score/internal/enrich"
	"mcp-food-score/internal/scoring"
	"mcp-food-score/internal/storage"
)

// Version is reported in the server info and by the CLI.
const Version = "1.0.0"

type FoodScoreServer struct {
	info       protocol.Implementation
	httpServer *http.Server
	storage    *storage.SQLiteStorage
	scorer     *scoring.Scorer
	resolver   *enrich.Resolver
	flags      config.FlagSource
	config     config.Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewFoodScoreServer opens the database and wires the scorer and enrichment
// resolver from cfg. flags is consulted once per tool call; nil means the
// flags in cfg overlaid with the environment.
func NewFoodScoreServer(cfg config.Config, flags config.FlagSource, logger *zap.Logger) (*FoodScoreServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if flags == nil {
		flags = config.EnvFlags{Base: cfg.Flags}
	}

	stor, err := storage.NewSQLiteStorage(cfg.DBPath, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	scorer := scoring.NewScorer(logger.Named("scoring"), scoring.WithGenericOverrideSources(cfg.Scoring.Sources()...))

	// a nil Chain must not become a non-nil Provider
	chain := enrich.ProvidersFromConfig(cfg)
	var provider enrich.Provider
	if len(chain) > 0 {
		provider = chain
	}
	resolver := enrich.NewResolver(logger.Named("enrich"), provider, stor,
		enrich.WithWriteThrough(cfg.Enrichment.WriteThroughConcurrency, cfg.Enrichment.WriteThroughTimeout),
		enrich.WithVaultTTL(cfg.Enrichment.VaultTTL),
		enrich.WithRegion(cfg.Region),
	)

	foodServer := &FoodScoreServer{
		info: protocol.Implementation{
			Name:    "food-score",
			Version: Version,
		},
		storage:  stor,
		scorer:   scorer,
		resolver: resolver,
		flags:    flags,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", foodServer.handleHealth)
	mux.HandleFunc("/", foodServer.handleHTTP)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	foodServer.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server.configured",
		zap.String("transport", cfg.Transport),
		zap.String("addr", addr),
		zap.Int("providers", len(chain)),
		zap.Strings("tools", toolNames()))
	return foodServer, nil
}

func (s *FoodScoreServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"server": s.info,
		"tools":  toolNames(),
	}); err != nil {
		s.logger.Warn("server.encode_failed", zap.Error(err))
	}
}

func (s *FoodScoreServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools()[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	// one flag snapshot per call
	flags := s.flags.Flags()
	start := s.now()
	result, err := handler(r.Context(), &request, flags)
	if err != nil {
		s.logger.Warn("tool.failed",
			zap.String("tool", request.Name),
			zap.Duration("elapsed", s.now().Sub(start)),
			zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, errInvalidParams) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.logger.Debug("tool.done",
		zap.String("tool", request.Name),
		zap.Duration("elapsed", s.now().Sub(start)))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Warn("server.encode_failed", zap.Error(err))
	}
}

// Handler returns the HTTP handler serving tool calls.
func (s *FoodScoreServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *FoodScoreServer) Start(ctx context.Context) error {
	s.logger.Info("server.starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener down, lets pending vault writes finish and closes
// the database.
func (s *FoodScoreServer) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.resolver != nil {
		s.resolver.Wait()
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *FoodScoreServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
