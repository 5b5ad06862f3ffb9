package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
)

// requestTimeout bounds a whole request; each outbound call carries its
// own, shorter, client timeout.
const requestTimeout = 15 * time.Second

// respondError turns an error into the single user-facing message of its
// kind.  Upstream bodies and internal details are only logged upstream of
// here, never written to the client.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": apperr.Reason(err, "invalid request")})
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "nothing found for this request"})
	case errors.Is(err, apperr.ErrGatewayTimeout):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "payment service is slow to answer, please try again"})
	case errors.Is(err, apperr.ErrUpstreamUnavailable), errors.Is(err, apperr.ErrUnexpectedResponse):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "service temporarily unavailable, please try again"})
	case errors.Is(err, apperr.ErrConfirmation):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "confirmation failed, it will be reconciled"})
	default:
		c.Logger().Errorf("unhandled error on %s: %v", c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
