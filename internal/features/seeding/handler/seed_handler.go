package handler

import (
	"package-tracker/internal/features/seeding/service"

	"github.com/gofiber/fiber/v2"
)

// SeedHandler handles HTTP requests for upstream feed ingestion.
type SeedHandler struct {
	seedService *service.SeedService
}

// NewSeedHandler creates a new SeedHandler.
func NewSeedHandler(seedService *service.SeedService) *SeedHandler {
	return &SeedHandler{
		seedService: seedService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// TriggerSeed godoc
// @Summary Ingest new shipments from the upstream feed
// @Description Pulls recent shipments from ShipStation and appends unknown tracking numbers to the store
// @Tags seeding
// @Produce json
// @Success 200 {object} domain.SeedSummary
// @Failure 500 {object} ErrorResponse
// @Router /seed [post]
func (h *SeedHandler) TriggerSeed(c *fiber.Ctx) error {
	summary, err := h.seedService.Ingest(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}
	return c.JSON(summary)
}
