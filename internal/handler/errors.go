// Package handler holds the echo handlers of the bike shop API. Handlers
// bind and validate request DTOs, call one service operation and map its
// error to a status code in one place (fail).
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/service"
)

// requestTimeout bounds every store round trip made on behalf of a request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct{ v *validator.Validate }

func NewValidator() *Validator { return &Validator{v: validator.New()} }

func (cv *Validator) Validate(i interface{}) error { return cv.v.Struct(i) }

// bind decodes the body into dst and validates it. The returned error is
// already a response.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return echo.NewHTTPError(http.StatusBadRequest, verrs[0].Field()+": failed "+verrs[0].Tag())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// status maps service errors to HTTP status codes.
func status(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrAddressNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicate),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrForeignKey):
		return http.StatusConflict
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrAlreadyFulfilled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSerialCollision),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail answers with the status for err. Server side failures are logged
// and hidden behind a generic message.
func fail(c echo.Context, log *zap.Logger, err error) error {
	code := status(err)
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(code, echo.Map{"error": http.StatusText(code)})
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}

func paramInt(c echo.Context, name string) (int64, error) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || n <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

// HTTPErrorHandler renders echo errors in the same {"error": ...} shape the
// handlers use.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := interface{}(http.StatusText(code))
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code, msg = he.Code, he.Message
		} else {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, echo.Map{"error": msg})
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}
