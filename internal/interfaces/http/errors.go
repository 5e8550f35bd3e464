package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/oms-router/internal/application/dto"
	"github.com/jhoicas/oms-router/internal/domain"
)

var validate = validator.New()

// errHandled indica que la respuesta de error ya fue escrita.
var errHandled = errors.New("respuesta enviada")

// handled convierte errHandled en nil para devolverlo desde el handler.
func handled(err error) error {
	if errors.Is(err, errHandled) {
		return nil
	}
	return err
}

// parseBody decodifica y valida el cuerpo JSON; ante un error ya respondió 400.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return badRequest(c, dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	return validateStruct(c, out)
}

// parseQuery decodifica y valida los parámetros de consulta; ante un error ya respondió 400.
func parseQuery(c *fiber.Ctx, out interface{}) error {
	if err := c.QueryParser(out); err != nil {
		return badRequest(c, dto.ErrorResponse{Code: "INVALID_PARAMS", Message: "parámetros de consulta inválidos"})
	}
	return validateStruct(c, out)
}

func validateStruct(c *fiber.Ctx, out interface{}) error {
	err := validate.Struct(out)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return badRequest(c, dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	details := make(map[string]string, len(ve))
	for _, fe := range ve {
		details[fe.Namespace()] = fe.Tag()
	}
	return badRequest(c, dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Details: details})
}

func badRequest(c *fiber.Ctx, body dto.ErrorResponse) error {
	if err := c.Status(fiber.StatusBadRequest).JSON(body); err != nil {
		return err
	}
	return errHandled
}

// respondError traduce errores de dominio a status HTTP.
func respondError(c *fiber.Ctx, err error) error {
	status, code := errorStatus(err)
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinates):
		return fiber.StatusBadRequest, "INVALID_COORDINATES"
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrNoCandidateLocation):
		return fiber.StatusUnprocessableEntity, "NO_CANDIDATE_LOCATION"
	case errors.Is(err, domain.ErrRoutingBusy):
		return fiber.StatusServiceUnavailable, "ROUTING_BUSY"
	case domain.IsTransient(err):
		return fiber.StatusServiceUnavailable, "ROUTING_UNAVAILABLE"
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, "CONFLICT"
	}
	return fiber.StatusInternalServerError, "INTERNAL"
}
