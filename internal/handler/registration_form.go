package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// RegistrationFormHandler serves the member's medical and emergency
// contact form.  Completing it is the gate for any cart activity.
type RegistrationFormHandler struct {
	Forms *repository.RegistrationFormRepo
}

func NewRegistrationFormHandler(f *repository.RegistrationFormRepo) *RegistrationFormHandler {
	return &RegistrationFormHandler{Forms: f}
}

// Get returns the member's form, 404 when not yet submitted.
func (h *RegistrationFormHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	form, err := h.Forms.GetByUser(c.Request().Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// Put submits or replaces the member's form.  The signature and the
// core contact fields are required.
func (h *RegistrationFormHandler) Put(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var form model.RegistrationForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if form.Address == "" || form.City == "" || form.Phone1 == "" ||
		form.EmergencyContactName == "" || form.EmergencyContactPhone == "" ||
		form.Signature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing required fields"})
	}
	form.UserID = userID
	if form.SignedOn.IsZero() {
		form.SignedOn = time.Now().UTC()
	}
	if err := h.Forms.Upsert(c.Request().Context(), &form); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}
