package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// CartHandler serves the member's cart.  Every mutation first checks
// the registration window; the remaining eligibility rules live inside
// the cart repository's add transaction.
type CartHandler struct {
	Carts    *repository.CartRepo
	Settings *repository.SettingsRepo
}

func NewCartHandler(carts *repository.CartRepo, settings *repository.SettingsRepo) *CartHandler {
	return &CartHandler{Carts: carts, Settings: settings}
}

// checkRegistrationOpen fails with ErrRegistrationClosed when cart
// mutation is not allowed right now for this email.  Missing settings
// mean registration was never opened.
func checkRegistrationOpen(ctx context.Context, settings *repository.SettingsRepo, email string, now time.Time) error {
	s, err := settings.Get(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrRegistrationClosed
	}
	if err != nil {
		return err
	}
	early, err := settings.IsEarlySignup(ctx, email)
	if err != nil {
		return err
	}
	if !s.RegistrationOpenFor(now, early) {
		return repository.ErrRegistrationClosed
	}
	return nil
}

type cartResp struct {
	Items     []model.CartItem `json:"items"`
	CostCents uint32           `json:"cost_cents"`
}

// Get returns the cart contents and the undiscounted total.
func (h *CartHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Carts.Items(c.Request().Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}
	if items == nil {
		items = []model.CartItem{}
	}
	return c.JSON(http.StatusOK, cartResp{Items: items, CostCents: model.CartCost(items)})
}

type addItemReq struct {
	CourseID uint64 `json:"course_id"`
}

// AddItem puts a course in the cart, subject to the registration window
// and the eligibility rules.
func (h *CartHandler) AddItem(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req addItemReq
	if err := c.Bind(&req); err != nil || req.CourseID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "course_id required"})
	}
	ctx := c.Request().Context()
	if err := checkRegistrationOpen(ctx, h.Settings, currentEmail(c), time.Now().UTC()); err != nil {
		return jsonError(c, err)
	}
	item, err := h.Carts.AddItem(ctx, userID, req.CourseID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

// RemoveItem takes an item out of the cart; dependents whose
// prerequisite was satisfied only by this item are removed with it.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	if err := h.Carts.RemoveItem(c.Request().Context(), userID, itemID); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
