// Package server is the thin HTTP trigger surface. Handlers parse,
// delegate to the scheduler, orchestrator, or recorder, and translate
// errors to status codes; no pricing logic lives here.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/guarzo/repricer/internal/ebay"
	"github.com/guarzo/repricer/internal/history"
	"github.com/guarzo/repricer/internal/model"
	"github.com/guarzo/repricer/internal/schedule"
	"github.com/guarzo/repricer/internal/store"
)

// Server wires the HTTP routes over the repricing services.
type Server struct {
	app      *fiber.App
	sched    *schedule.Scheduler
	recorder *history.Recorder
	listings store.Listings
	search   *ebay.SearchClient
}

func New(sched *schedule.Scheduler, recorder *history.Recorder, listings store.Listings, search *ebay.SearchClient) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "repricer",
			DisableStartupMessage: true,
		}),
		sched:    sched,
		recorder: recorder,
		listings: listings,
		search:   search,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)

	api := s.app.Group("/api")
	api.Post("/reprice/:itemId", s.repriceItem)
	api.Post("/reprice-all", s.repriceAll)
	api.Post("/monitor/run", s.runCycle)
	api.Get("/history/:itemId", s.historyQuery)
	api.Get("/history/:itemId/analytics", s.historyAnalytics)
	api.Get("/history/:itemId/summary", s.historySummary)
	api.Post("/history/archive", s.historyArchive)
	api.Put("/listings/:itemId/price", s.setManualPrice)
	api.Get("/competitors/search", s.competitorSearch)
}

// Listen starts serving on addr, blocking until shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) repriceItem(c *fiber.Ctx) error {
	itemID := c.Params("itemId")
	sku := c.Query("sku")

	result, err := s.sched.RunItem(c.Context(), itemID, sku, model.SourceAPI)
	if err != nil {
		if result != nil && result.Status == model.StatusError {
			// The decision was recorded; report it with the failure.
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":  err.Error(),
				"result": result,
			})
		}
		return errorStatus(c, err)
	}
	return c.JSON(result)
}

func (s *Server) repriceAll(c *fiber.Ctx) error {
	report, err := s.sched.RunAllWithCompetitors(c.Context())
	if err != nil {
		return errorStatus(c, err)
	}
	return c.JSON(report)
}

func (s *Server) runCycle(c *fiber.Ctx) error {
	report, err := s.sched.RunCycle(c.Context())
	if err != nil {
		return errorStatus(c, err)
	}
	return c.JSON(report)
}

func (s *Server) historyQuery(c *fiber.Ctx) error {
	q := history.Query{
		ItemID:    c.Params("itemId"),
		SKU:       c.Query("sku"),
		Limit:     int64(c.QueryInt("limit")),
		Page:      int64(c.QueryInt("page")),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	records, err := s.recorder.Query(c.Context(), q)
	if err != nil {
		return errorStatus(c, err)
	}
	return c.JSON(fiber.Map{"itemId": q.ItemID, "count": len(records), "records": records})
}

func (s *Server) historyAnalytics(c *fiber.Ctx) error {
	period := history.Period(c.Query("period", string(history.Period30d)))
	analytics, err := s.recorder.Analytics(c.Context(), c.Params("itemId"), c.Query("sku"), period)
	if err != nil {
		return errorStatus(c, err)
	}
	return c.JSON(analytics)
}

func (s *Server) historySummary(c *fiber.Ctx) error {
	summary, err := s.recorder.Summary(c.Context(), c.Params("itemId"))
	if err != nil {
		return errorStatus(c, err)
	}
	return c.JSON(summary)
}

func (s *Server) historyArchive(c *fiber.Ctx) error {
	keep, err := strconv.Atoi(c.Query("keepRecentCount", "100"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "keepRecentCount must be an integer"})
	}

	deleted, err := s.recorder.Archive(c.Context(), keep)
	if err != nil {
		return errorStatus(c, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted, "keepRecentCount": keep})
}

// setManualPrice records a seller-entered price change: the listing is
// updated and a Manual history entry is appended, bypassing the
// strategy pipeline.
func (s *Server) setManualPrice(c *fiber.Ctx) error {
	itemID := c.Params("itemId")
	price, err := strconv.ParseFloat(c.Query("price"), 64)
	if err != nil || price < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price must be a non-negative number"})
	}

	listing, err := s.listings.Get(c.Context(), itemID)
	if err != nil {
		return errorStatus(c, err)
	}

	record, err := s.recorder.Record(c.Context(), &model.PriceHistory{
		ItemID:   itemID,
		SKU:      c.Query("sku"),
		OldPrice: model.Float64Ptr(listing.CurrentPrice),
		NewPrice: price,
		Status:   model.StatusManual,
		Success:  true,
		Source:   model.SourceManual,
	})
	if err != nil {
		return errorStatus(c, err)
	}
	if err := s.listings.SetCurrentPrice(c.Context(), itemID, price); err != nil {
		return errorStatus(c, err)
	}
	return c.JSON(record)
}

func (s *Server) competitorSearch(c *fiber.Ctx) error {
	if s.search == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "competitor search not configured"})
	}
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "q is required"})
	}

	snapshots, err := s.search.SearchCompetitors(c.Context(), query, c.QueryInt("max", 20))
	if err != nil {
		return errorStatus(c, err)
	}
	return c.JSON(fiber.Map{"query": query, "count": len(snapshots), "results": snapshots})
}

// errorStatus maps domain errors onto HTTP statuses.
func errorStatus(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, model.ErrConflict), errors.Is(err, schedule.ErrCycleInProgress):
		status = fiber.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	}

	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
