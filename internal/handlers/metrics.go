package handlers

import (
	"errors"
	"strconv"

	"github.com/arnold/mandala-api/internal/goaltree"
	"github.com/arnold/mandala-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

func parseYear(c *fiber.Ctx) (int, error) {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year <= 0 {
		return 0, errors.New("Invalid year")
	}
	return year, nil
}

func (h *Handler) GetPlannedMetrics(c *fiber.Ctx) error {
	planned, err := h.metrics.PlannedYearlyMetrics(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"planned": planned})
}

// PutPlannedMetrics updates a year's targets and re-derives every bound node.
func (h *Handler) PutPlannedMetrics(c *fiber.Ctx) error {
	year, err := parseYear(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req models.PlannedMetricsRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	plan, err := h.metrics.UpsertPlanned(c.UserContext(), year, req)
	if err != nil {
		return h.fail(c, err)
	}
	updated, err := h.engine.SyncMetrics(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"planned": plan,
		"updated": updated,
	})
}

func (h *Handler) GetActualMetrics(c *fiber.Ctx) error {
	actual, err := h.metrics.ActualYearlyMetrics(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"actual": actual})
}

// PutActualMetrics stores a year's actual figures and then feeds them to the
// tree. Stored actuals are replayed at startup, so the tree never tracks
// figures that were not saved.
func (h *Handler) PutActualMetrics(c *fiber.Ctx) error {
	year, err := parseYear(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req models.ActualMetricsUpdate
	if err := h.parseBody(c, &req); err != nil {
		h.rejectMetrics()
		return badRequest(c, err)
	}
	if err := req.Validate(); err != nil {
		h.rejectMetrics()
		return badRequest(c, err)
	}

	actual, err := h.metrics.UpsertActual(c.UserContext(), year, req)
	if err != nil {
		return h.fail(c, err)
	}
	updated, err := h.engine.OnYearlyActualMetricsChanged(c.UserContext(), year, req)
	if err != nil {
		if errors.Is(err, goaltree.ErrInvalidMetricValue) {
			h.rejectMetrics()
		}
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"actual":  actual,
		"updated": updated,
	})
}

func (h *Handler) rejectMetrics() {
	if h.telemetry != nil {
		h.telemetry.RecordMetricRejection()
	}
}
