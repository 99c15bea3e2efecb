package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
)

var validate = validator.New()

// Error codes returned in the "error" field besides the aggregation reasons.
const (
	codeBadRequest = "bad_request"
	codeTimeout    = "timeout"
	codeInternal   = "internal"
)

// Aggregator builds evidence packs; *evidence.Service satisfies it.
type Aggregator interface {
	Aggregate(ctx context.Context, req evidence.AggregateRequest) (evidence.EvidencePack, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc Aggregator) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "agri-evidence-aggregation",
		})
	})

	api := app.Group("/api")

	api.Post("/aggregate", func(c *fiber.Ctx) error {
		var req evidence.AggregateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body: "+err.Error())
		}
		req.Demo = c.QueryBool("demo", req.Demo)

		if err := validate.Struct(req.Profile); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		pack, err := svc.Aggregate(c.UserContext(), req)
		if err != nil {
			return err
		}
		return c.JSON(pack)
	})
}

// RegisterMetrics exposes a net/http metrics handler at /metrics.
func RegisterMetrics(app *fiber.App, h http.Handler) {
	app.Get("/metrics", adaptor.HTTPHandler(h))
}

// ErrorHandler renders every failure as {error, detail}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	return c.Status(status).JSON(fiber.Map{
		"error":  code,
		"detail": err.Error(),
	})
}

func classify(err error) (int, string) {
	var afe *evidence.AggregationFailedError
	var fe *fiber.Error
	switch {
	case errors.As(err, &afe):
		if afe.Reason == evidence.ReasonUnknownProfile {
			return fiber.StatusBadRequest, afe.Reason
		}
		return fiber.StatusServiceUnavailable, afe.Reason
	case errors.As(err, &fe):
		if fe.Code >= 500 {
			return fe.Code, codeInternal
		}
		return fe.Code, codeBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, codeTimeout
	default:
		return fiber.StatusInternalServerError, codeInternal
	}
}
