package handlers

import (
	"github.com/arnold/mandala-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

// GetTree returns the whole tree.
func (h *Handler) GetTree(c *fiber.Ctx) error {
	return c.JSON(h.engine.Snapshot())
}

func (h *Handler) GetNode(c *fiber.Ctx) error {
	node, err := h.engine.Node(models.NodeID(c.Params("id")))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(node)
}

// SetCheck checks or unchecks a leaf.
func (h *Handler) SetCheck(c *fiber.Ctx) error {
	var req models.SetCheckRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	id := models.NodeID(c.Params("id"))
	events, err := h.engine.SetLeafCheck(c.UserContext(), id, *req.Checked)
	if err != nil {
		return h.fail(c, err)
	}
	return h.nodeResponse(c, id, events)
}

// UpdateNode renames a node and optionally rebinds it to a metric.
func (h *Handler) UpdateNode(c *fiber.Ctx) error {
	var req models.UpdateNodeRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	id := models.NodeID(c.Params("id"))
	var binding *models.MetricBinding
	if req.MetricBinding != nil {
		binding = req.MetricBinding.Binding()
	}

	events, err := h.engine.UpdateNode(c.UserContext(), id, req.Title, binding)
	if err != nil {
		return h.fail(c, err)
	}
	return h.nodeResponse(c, id, events)
}

// SetPercent writes an external percent to a metric-bound node.
func (h *Handler) SetPercent(c *fiber.Ctx) error {
	var req models.SetPercentRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	id := models.NodeID(c.Params("id"))
	events, err := h.engine.SetMetricPercent(c.UserContext(), id, *req.Percent)
	if err != nil {
		return h.fail(c, err)
	}
	return h.nodeResponse(c, id, events)
}

// GetCheckpoint reports whether a leaf differs from its last checkpoint.
func (h *Handler) GetCheckpoint(c *fiber.Ctx) error {
	changed, err := h.engine.LeafChanged(c.UserContext(), models.NodeID(c.Params("id")))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"changed": changed})
}

func (h *Handler) SaveCheckpoint(c *fiber.Ctx) error {
	if err := h.engine.SaveCheckpoint(c.UserContext(), models.NodeID(c.Params("id"))); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) nodeResponse(c *fiber.Ctx, id models.NodeID, events []models.Celebration) error {
	node, err := h.engine.Node(id)
	if err != nil {
		return h.fail(c, err)
	}
	if events == nil {
		events = []models.Celebration{}
	}
	return c.JSON(fiber.Map{
		"node":         node,
		"celebrations": events,
	})
}
