package handler

import (
	"errors"

	"package-tracker/internal/features/tracking/domain"
	"package-tracker/internal/features/tracking/service"

	"github.com/gofiber/fiber/v2"
)

// TrackingHandler handles HTTP requests for tracking records and runs.
type TrackingHandler struct {
	trackingService *service.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(trackingService *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{
		trackingService: trackingService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// Healthz godoc
// @Summary Liveness and store reachability
// @Description Reports ok when the process is up and the sheet store is readable
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (h *TrackingHandler) Healthz(c *fiber.Ctx) error {
	if _, err := h.trackingService.Records(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// GetRecords godoc
// @Summary List all tracking records
// @Description Returns every persisted tracking record in sheet order
// @Tags tracking
// @Produce json
// @Success 200 {array} domain.TrackingRecord
// @Failure 500 {object} ErrorResponse
// @Router /records [get]
func (h *TrackingHandler) GetRecords(c *fiber.Ctx) error {
	records, err := h.trackingService.Records()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}
	if records == nil {
		records = []domain.TrackingRecord{}
	}
	return c.JSON(records)
}

// GetRecord godoc
// @Summary Get one tracking record
// @Description Returns the persisted record for a tracking number
// @Tags tracking
// @Produce json
// @Param number path string true "Tracking Number"
// @Success 200 {object} domain.TrackingRecord
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /records/{number} [get]
func (h *TrackingHandler) GetRecord(c *fiber.Ctx) error {
	record, err := h.trackingService.Record(c.Params("number"))
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Message: "tracking record not found",
				RayID:   c.Locals("requestid").(string),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}
	return c.JSON(record)
}

// TriggerRun godoc
// @Summary Trigger a polling run
// @Description Executes one full refresh of every tracking record and reports the outcome
// @Tags tracking
// @Produce json
// @Success 200 {object} domain.RunSummary
// @Failure 500 {object} ErrorResponse
// @Router /runs [post]
func (h *TrackingHandler) TriggerRun(c *fiber.Ctx) error {
	summary, err := h.trackingService.RunOnce(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}
	return c.JSON(summary)
}
