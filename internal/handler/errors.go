package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pybroo/pybroo/internal/catalog"
	"github.com/pybroo/pybroo/internal/session"
	"github.com/pybroo/pybroo/pkg/logger"
	"github.com/pybroo/pybroo/pkg/response"
)

// translateError maps core sentinel errors onto HTTP responses. Validation
// messages are written for end users and safe to surface verbatim.
func translateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, session.ErrValidation), errors.Is(err, catalog.ErrValidation):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, session.ErrNotAuthenticated):
		return response.Unauthorized(c, "please login first")
	case errors.Is(err, session.ErrInvalidUpgrade):
		return response.Conflict(c, err.Error())
	case errors.Is(err, catalog.ErrUnknownResource):
		return response.NotFound(c, "no resource with that id")
	default:
		logger.Error().Err(err).Str("path", c.Path()).Msg("Unhandled core error")
		return response.InternalError(c, "internal error")
	}
}
