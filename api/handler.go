// Package api is the operations surface of the tracker: health, scheduler
// status and manual triggers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/raushankrgupta/price-tracker/scrapers"
	"github.com/raushankrgupta/price-tracker/store"
	"github.com/raushankrgupta/price-tracker/tracker"
	"github.com/raushankrgupta/price-tracker/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Engine is what the handlers drive; *tracker.Scheduler implements it
type Engine interface {
	Sweep(ctx context.Context) (*tracker.SweepReport, error)
	RunMaintenance(ctx context.Context) (*tracker.MaintenanceReport, error)
	CheckTracking(ctx context.Context, id primitive.ObjectID) (*tracker.Result, error)
	Status() tracker.Status
}

type Handler struct {
	engine Engine
	source tracker.SampleSource
}

// NewRouter wires the ops routes. source may be nil to disable /scrape.
func NewRouter(engine Engine, source tracker.SampleSource) *gin.Engine {
	h := &Handler{engine: engine, source: source}

	router := gin.New()
	router.Use(gin.Recovery(), LatencyMiddleware())

	router.GET("/healthz", h.Health)
	router.GET("/status", h.Status)
	router.POST("/sweeps", h.Sweep)
	router.POST("/maintenance", h.Maintenance)
	router.POST("/trackings/:id/check", h.CheckTracking)
	if source != nil {
		router.GET("/scrape", h.Scrape)
	}
	return router
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Status())
}

// Sweep runs a full pass now. The pass outlives a dropped client connection.
func (h *Handler) Sweep(c *gin.Context) {
	report, err := h.engine.Sweep(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, tracker.ErrSweepInProgress):
		respondError(c, http.StatusConflict, err)
	case errors.Is(err, tracker.ErrSchedulerStopped):
		respondError(c, http.StatusServiceUnavailable, err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (h *Handler) Maintenance(c *gin.Context) {
	report, err := h.engine.RunMaintenance(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, tracker.ErrMaintenanceInProgress):
		respondError(c, http.StatusConflict, err)
	case errors.Is(err, tracker.ErrSchedulerStopped):
		respondError(c, http.StatusServiceUnavailable, err)
	case err != nil && report != nil:
		// partial pass: report what was done alongside the joined errors
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
	case err != nil:
		respondError(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (h *Handler) CheckTracking(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, errors.New("invalid tracking id"))
		return
	}

	res, err := h.engine.CheckTracking(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, tracker.ErrTrackingNotActive), errors.Is(err, tracker.ErrCheckInProgress):
		respondError(c, http.StatusConflict, err)
	case errors.Is(err, tracker.ErrSchedulerStopped):
		respondError(c, http.StatusServiceUnavailable, err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, err)
	default:
		body := gin.H{"result": res}
		if res.Err != nil {
			body["error"] = res.Err.Error()
		}
		c.JSON(http.StatusOK, body)
	}
}

// Scrape previews what the tracker would record for a URL without storing anything
func (h *Handler) Scrape(c *gin.Context) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Scrape API]")

	productURL := c.Query("url")
	if productURL == "" {
		utils.AddToLogMessage(&logMessageBuilder, "URL parameter missing")
		respondError(c, http.StatusBadRequest, errors.New("please provide a 'url' query parameter"))
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, "Scraping URL: %s", productURL)

	sample, err := h.source.Fetch(c.Request.Context(), productURL)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Scraping failed: %v", err)
		respondError(c, scrapeStatus(err), err)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, "Scraping successful")
	c.JSON(http.StatusOK, sample)
}

func scrapeStatus(err error) int {
	switch {
	case errors.Is(err, scrapers.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, scrapers.ErrParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

var _ tracker.SampleSource = (*scrapers.Scraper)(nil)
