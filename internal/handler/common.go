// Package handler contains the HTTP handlers.  Handlers bind and
// validate input, call repositories and services, and translate the
// sentinel errors of the data layer into HTTP statuses.
package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// currentUserID reads the authenticated user id injected by JWTAuth.
// JWT numeric claims decode as float64.
func currentUserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), true
	case uint64:
		return v, true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// currentEmail reads the authenticated email claim.
func currentEmail(c echo.Context) string {
	if s, ok := c.Get("email").(string); ok {
		return s
	}
	return ""
}

func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// jsonError translates a repository or service error into a JSON
// response.  Validation sentinels map to 422, ownership to 403,
// state conflicts to 409, missing rows to 404, everything else to 500.
func jsonError(c echo.Context, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": msg})
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrAlreadyOnWaitList),
		errors.Is(err, repository.ErrSettingsExist),
		errors.Is(err, repository.ErrAlreadyRefunded),
		errors.Is(err, repository.ErrDuplicatePayment),
		errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": msg})
	case errors.Is(err, repository.ErrCourseFull),
		errors.Is(err, repository.ErrCourseNotFull),
		errors.Is(err, repository.ErrNoRegistrationForm),
		errors.Is(err, repository.ErrDuplicateCourseType),
		errors.Is(err, repository.ErrMissingPrerequisite),
		errors.Is(err, repository.ErrRequirementCycle),
		errors.Is(err, repository.ErrRegistrationClosed),
		errors.Is(err, repository.ErrRefundWindowClosed):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": msg})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
