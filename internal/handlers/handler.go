package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arnold/mandala-api/internal/goaltree"
	"github.com/arnold/mandala-api/internal/models"
	"github.com/arnold/mandala-api/internal/services"
	"github.com/arnold/mandala-api/internal/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Handler serves the goal tree over HTTP. Every write goes through the
// single engine it wraps.
type Handler struct {
	engine    *goaltree.Engine
	metrics   *services.MetricsService
	history   *services.CelebrationHistory
	hub       *Hub
	telemetry *telemetry.Collector
	validate  *validator.Validate
	log       logrus.FieldLogger
}

type Deps struct {
	Engine    *goaltree.Engine
	Metrics   *services.MetricsService
	History   *services.CelebrationHistory
	Hub       *Hub
	Telemetry *telemetry.Collector
	Log       logrus.FieldLogger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		engine:    d.Engine,
		metrics:   d.Metrics,
		history:   d.History,
		hub:       d.Hub,
		telemetry: d.Telemetry,
		validate:  newValidator(),
		log:       log,
	}
}

// newValidator builds the request validator. Registration only fails for
// a malformed tag name, so a failure is a programming error.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("metric_kind", func(fl validator.FieldLevel) bool {
		return models.MetricKind(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("handlers: register metric_kind: %v", err))
	}
	return v
}

// parseBody decodes and validates a JSON body into req.
func (h *Handler) parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errors.New("Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(fields, ", ")
}

// fail maps engine errors onto status codes.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, goaltree.ErrNodeNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, goaltree.ErrNotLeaf), errors.Is(err, goaltree.ErrNotMetricBound):
		status = fiber.StatusConflict
	case errors.Is(err, goaltree.ErrInvalidBinding),
		errors.Is(err, goaltree.ErrInvalidPercent),
		errors.Is(err, goaltree.ErrInvalidMetricValue):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.Path()).Error("Request failed")
		return c.Status(status).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
