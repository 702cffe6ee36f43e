package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpulse/internal/service"
	"github.com/maheshrc27/postpulse/internal/transfer"
)

type EngagementHandler struct {
	s service.EngagementService
}

func NewEngagementHandler(service service.EngagementService) *EngagementHandler {
	return &EngagementHandler{s: service}
}

func (h *EngagementHandler) GetEngagement(c *fiber.Ctx) error {
	e, err := h.s.GetEngagement(c.Context(), GetUserID(c), c.Params("id"), c.QueryBool("force"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(e)
}

func (h *EngagementHandler) GetEngagementByLocalID(c *fiber.Ctx) error {
	e, err := h.s.GetEngagementByLocalID(c.Context(), GetUserID(c), c.Params("id"), c.QueryBool("force"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(e)
}

func (h *EngagementHandler) ListEngagements(c *fiber.Ctx) error {
	list, err := h.s.GetAllUserEngagements(c.Context(), GetUserID(c), c.QueryInt("limit", 0), c.QueryBool("force"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(list)
}

func (h *EngagementHandler) RefreshEngagement(c *fiber.Ctx) error {
	e, err := h.s.RefreshEngagement(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(e)
}

func (h *EngagementHandler) RefreshAll(c *fiber.Ctx) error {
	res, err := h.s.RefreshAllEngagements(c.Context(), GetUserID(c), c.QueryInt("limit", 0))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *EngagementHandler) RefreshBatch(c *fiber.Ctx) error {
	var req transfer.BatchRefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	res, err := h.s.RefreshBatchEngagements(c.Context(), GetUserID(c), req.PostIDXs)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// Register mounts the engagement routes on r.
func (h *EngagementHandler) Register(r fiber.Router) {
	r.Get("/engagements", h.ListEngagements)
	r.Post("/engagements/refresh_all", h.RefreshAll)
	r.Post("/engagements/refresh_batch", h.RefreshBatch)
	r.Get("/engagements/local/:id", h.GetEngagementByLocalID)
	r.Get("/engagements/:id", h.GetEngagement)
	r.Post("/engagements/:id/refresh", h.RefreshEngagement)
}
