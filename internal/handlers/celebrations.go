package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GetCelebrations returns paginated celebration history, newest first
func (h *Handler) GetCelebrations(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	celebrations, total, err := h.history.List(c.UserContext(), page, limit)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"celebrations": celebrations,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}
