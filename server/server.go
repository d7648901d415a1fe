package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sip/scraperworker/config"
	"sip/scraperworker/internal/extract"
	"sip/scraperworker/internal/ingest"
	"sip/scraperworker/logger"
)

const tokenHeader = "X-Scraper-Token"

// Server exposes the internal HTTP surface: the result callback used by
// external scraper instances, a health probe and the metrics endpoint.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	engine *ingest.Engine
	log    *logger.Logger
}

// resultsPayload is the callback body. Listing cards and full detail records
// may arrive in the same call.
type resultsPayload struct {
	Results  []extract.RawCard    `json:"results"`
	Products []extract.RawProduct `json:"products"`
}

// New builds the HTTP server and its routes.
func New(cfg config.Config, engine *ingest.Engine) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	s := &Server{
		app:    app,
		cfg:    cfg,
		engine: engine,
		log:    logger.ForComponent("server"),
	}

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	internal := app.Group("/internal/v1", s.requireToken)
	internal.Post("/results", s.handleResults)

	return s
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.log.Info().Str("addr", s.cfg.ListenAddr).Msg("http server listening")
	err := s.app.Listen(s.cfg.ListenAddr)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requireToken guards the internal group with the shared callback secret.
// An empty configured secret disables the check for local development.
func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.cfg.CallbackSecret == "" {
		return c.Next()
	}
	if c.Get(tokenHeader) != s.cfg.CallbackSecret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid or missing token",
		})
	}
	return c.Next()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleResults ingests externally scraped records and reports how many
// landed. Partial failures do not fail the request; the count tells the
// caller what stuck.
func (s *Server) handleResults(c *fiber.Ctx) error {
	var payload resultsPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed payload",
		})
	}
	if len(payload.Results) == 0 && len(payload.Products) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no results in payload",
		})
	}

	processed := 0
	if len(payload.Results) > 0 {
		result, err := s.engine.Cards(c.Context(), payload.Results)
		if err != nil {
			s.log.WithError(err).Error().Msg("card batch ingest failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "ingest failed",
			})
		}
		processed += result.Processed
	}

	for _, product := range payload.Products {
		result, err := s.engine.Product(c.Context(), product)
		if err != nil {
			s.log.WithError(err).Warn().Str("shopee_id", product.ShopeeID).Msg("product ingest failed")
			continue
		}
		processed += result.Processed
	}

	return c.JSON(fiber.Map{"processed": processed})
}
