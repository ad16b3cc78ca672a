// Package server exposes the ranker over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/catalog"
	"github.com/spigell/hh-matcher/internal/courses"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/ranker"
)

const (
	appName      = "hh-matcher"
	bodyLimit    = 4 << 20
	readTimeout  = 30 * time.Second
	// writeTimeout leaves room for AI judge calls on large batches.
	writeTimeout = 120 * time.Second
)

// Ranker is the scoring surface the API serves.
type Ranker interface {
	ScoreCandidates(ctx context.Context, job catalog.Job, candidates []catalog.Candidate) ([]matching.MatchResult, error)
	MatchJobs(ctx context.Context, candidate catalog.Candidate, jobs catalog.Jobs) ([]matching.MatchResult, error)
	ComputeGap(ctx context.Context, candidate catalog.Candidate, job catalog.Job) ranker.GapReport
	RecommendCourses(missing []string, topN int) []courses.Recommendation
	Warmup(ctx context.Context, texts []string, modelID string) (embedding.WarmupReport, error)
	WarmupJobs(ctx context.Context, jobs catalog.Jobs) (embedding.WarmupReport, error)
	Describe() ranker.Description
}

type Server struct {
	app    *fiber.App
	ranker Ranker
	jobs   catalog.Jobs
	logger *zap.Logger
}

// New builds the API over r. jobs is the loaded job catalog that requests
// may reference by id.
func New(r Ranker, jobs catalog.Jobs, log *zap.Logger) *Server {
	s := &Server{
		ranker: r,
		jobs:   jobs,
		logger: logger.WithFields(log, zap.String("component", "api")),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               appName,
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		BodyLimit:             bodyLimit,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)

	api := s.app.Group("/api/v1")
	api.Get("/health", s.health)
	api.Get("/stages", s.stages)
	api.Post("/score", s.score)
	api.Post("/match", s.match)
	api.Post("/gap", s.gap)
	api.Post("/courses", s.courses)
	api.Post("/warmup", s.warmup)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("api listening", zap.String("addr", addr), zap.Int("jobs", len(s.jobs)))
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	s.logger.Debug("request served",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
	)
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, ranker.ErrInvalidRequest), errors.Is(err, embedding.ErrUnknownModel):
		code = fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = fiber.StatusServiceUnavailable
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
