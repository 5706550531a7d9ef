// Package api serves generated records over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/maskfill/internal/datagen"
	"github.com/samcharles93/maskfill/internal/logger"
	"github.com/samcharles93/maskfill/internal/version"
)

const (
	DefaultCount = 1
	MaxCount     = 10000
)

// ModelLister reports the models a server can load without network access.
type ModelLister interface {
	ListModels() ([]string, error)
}

// Config configures a Server.
type Config struct {
	Registry *datagen.Registry
	Store    *BatchStore
	// Datadir is the default model-dir for fields that do not set one.
	Datadir  string
	Models   ModelLister
	MaxCount int
	Logger   logger.Logger
}

type Server struct {
	registry *datagen.Registry
	store    *BatchStore
	datadir  string
	models   ModelLister
	maxCount int
	log      logger.Logger
	clock    func() time.Time
}

func NewServer(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = datagen.NewRegistry()
	}
	if cfg.Store == nil {
		cfg.Store = NewBatchStore(DefaultBatchTTL)
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = MaxCount
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Server{
		registry: cfg.Registry,
		store:    cfg.Store,
		datadir:  cfg.Datadir,
		models:   cfg.Models,
		maxCount: cfg.MaxCount,
		log:      cfg.Logger,
		clock:    time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/v1/batches/:id", s.handleGetBatch)
	e.DELETE("/v1/batches/:id", s.handleDeleteBatch)

	e.GET("/v1/types", s.handleListTypes)
	e.GET("/v1/types/:name/schema", s.handleTypeSchema)
	e.GET("/v1/models", s.handleListModels)
}

// GenerateRequest asks for Count records of Spec. Spec has the same shape as a
// spec file: top-level fields plus an optional "refs" block.
type GenerateRequest struct {
	Spec    json.RawMessage `json:"spec"`
	Count   *int            `json:"count,omitempty"`
	Datadir string          `json:"datadir,omitempty"`
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeErr(c, err)
	}
	count := DefaultCount
	if req.Count != nil {
		count = *req.Count
	}
	if count < 1 || count > s.maxCount {
		return writeBadRequest(c, fmt.Sprintf("count must be between 1 and %d", s.maxCount))
	}
	if len(req.Spec) == 0 || string(req.Spec) == "null" {
		return writeBadRequest(c, "spec is required")
	}

	ctx := logger.WithContext(c.Request().Context(), s.log)
	datadir := s.datadir
	if req.Datadir != "" {
		datadir = req.Datadir
	}
	records, err := s.generate(ctx, req.Spec, count, datadir)
	if err != nil {
		s.log.Warn("generate failed", "error", err)
		return writeErr(c, err)
	}
	batch := s.store.Create(records, s.clock())
	s.log.Info("generated batch", "id", batch.ID, "count", batch.Count)
	return c.JSON(http.StatusOK, batch)
}

func (s *Server) generate(ctx context.Context, spec []byte, count int, datadir string) ([]datagen.Record, error) {
	doc, err := datagen.ParseDocument(spec, datagen.FormatJSON)
	if err != nil {
		return nil, err
	}
	loader := datagen.NewLoader(s.registry, doc.Refs, datadir)
	loader.Logger = s.log
	gen, err := datagen.NewGenerator(ctx, doc, loader)
	if err != nil {
		return nil, err
	}
	records := make([]datagen.Record, 0, count)
	err = gen.Generate(ctx, count, func(r datagen.Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Server) handleGetBatch(c *echo.Context) error {
	id := c.Param("id")
	batch, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, fmt.Sprintf("batch %q not found", id))
	}
	return c.JSON(http.StatusOK, batch)
}

func (s *Server) handleDeleteBatch(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, fmt.Sprintf("batch %q not found", id))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"object":  "batch.deleted",
		"deleted": true,
	})
}

func (s *Server) handleListTypes(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   s.registry.Types(),
	})
}

func (s *Server) handleTypeSchema(c *echo.Context) error {
	name := c.Param("name")
	schema, ok := s.registry.Schema(name)
	if !ok {
		return writeNotFound(c, fmt.Sprintf("no schema for type %q", name))
	}
	return c.JSON(http.StatusOK, schema)
}

func (s *Server) handleListModels(c *echo.Context) error {
	models := []string{}
	if s.models != nil {
		found, err := s.models.ListModels()
		if err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
		}
		models = append(models, found...)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   models,
	})
}
