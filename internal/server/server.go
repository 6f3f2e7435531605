// Package server exposes liveness, manual trigger and status endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/dispatch"
)

const (
	DefaultPort  = 10000
	RunningText  = "Job Hunter Bot is running!"
	shutdownWait = 5 * time.Second
)

// Dispatcher is the part of the task queue the handlers need.
type Dispatcher interface {
	Submit(source string) (string, error)
	Status() (current, last *dispatch.Status)
	Pending() int
}

type Server struct {
	app    *fiber.App
	logger *zap.Logger
}

func New(d Dispatcher, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "job-hunter",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(accessLog(logger))

	h := &handlers{dispatcher: d, logger: logger}
	app.Get("/", h.root)
	app.Get("/run", h.run)
	app.Get("/status", h.status)

	return &Server{app: app, logger: logger}
}

// App exposes the fiber application for in-process requests.
func (s *Server) App() *fiber.App { return s.app }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()

	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")

	return nil
}

type handlers struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

func (h *handlers) root(c *fiber.Ctx) error {
	return c.SendString(RunningText)
}

func (h *handlers) run(c *fiber.Ctx) error {
	id, err := h.dispatcher.Submit("http")
	if err != nil {
		status := fiber.StatusServiceUnavailable
		if !errors.Is(err, dispatch.ErrQueueFull) && !errors.Is(err, dispatch.ErrStopped) {
			status = fiber.StatusInternalServerError
		}
		return c.Status(status).JSON(fiber.Map{
			"status": "rejected",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":  "accepted",
		"task_id": id,
	})
}

func (h *handlers) status(c *fiber.Ctx) error {
	current, last := h.dispatcher.Status()

	return c.JSON(fiber.Map{
		"running": current,
		"last":    last,
		"queued":  h.dispatcher.Pending(),
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func accessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		logger.Debug("http request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)

		return err
	}
}
