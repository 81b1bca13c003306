package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/payments"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
	"github.com/skagit-alpine-club/registration-server/internal/service"
)

// CheckoutHandler turns a cart into a hosted checkout session.  The
// course selections ride along as session metadata and come back on the
// completion webhook, which is where enrollment actually happens.
type CheckoutHandler struct {
	Carts     *repository.CartRepo
	Users     *repository.UserRepo
	Discounts *repository.DiscountRepo
	Settings  *repository.SettingsRepo
	Pay       payments.Processor
}

func NewCheckoutHandler(carts *repository.CartRepo, users *repository.UserRepo,
	discounts *repository.DiscountRepo, settings *repository.SettingsRepo, pay payments.Processor) *CheckoutHandler {
	return &CheckoutHandler{Carts: carts, Users: users, Discounts: discounts, Settings: settings, Pay: pay}
}

type checkoutResp struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// Create starts a checkout session for the member's cart.  The
// previous-student discount, when one is on file for the email, is
// attached as a coupon; the cart total itself stays undiscounted.
func (h *CheckoutHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	email := currentEmail(c)
	ctx := c.Request().Context()

	if err := checkRegistrationOpen(ctx, h.Settings, email, time.Now().UTC()); err != nil {
		return jsonError(c, err)
	}

	items, err := h.Carts.Items(ctx, userID)
	if err != nil {
		return jsonError(c, err)
	}
	if len(items) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "cart is empty"})
	}

	customerID, err := service.EnsureCustomer(ctx, h.Users, h.Pay, userID)
	if err != nil {
		return jsonError(c, err)
	}

	couponID := ""
	if discount, err := h.Discounts.ForEmail(ctx, email); err != nil {
		return jsonError(c, err)
	} else if discount != nil {
		couponID = discount.CouponID
	}

	selections := make([]model.CourseSelection, 0, len(items))
	lines := make([]payments.CheckoutLine, 0, len(items))
	for _, it := range items {
		selections = append(selections, model.CourseSelection{CourseID: it.CourseID, CouponID: couponID})
		lines = append(lines, payments.CheckoutLine{
			Name:        fmt.Sprintf("%s %s", it.TypeName, it.Specifics),
			AmountCents: it.CostCents,
		})
	}
	selectionsJSON, err := json.Marshal(selections)
	if err != nil {
		return jsonError(c, err)
	}

	session, err := h.Pay.CreateCheckoutSession(ctx, payments.CheckoutParams{
		CustomerID: customerID,
		Lines:      lines,
		CouponID:   couponID,
		Metadata: map[string]string{
			"user_id":    strconv.FormatUint(userID, 10),
			"selections": string(selectionsJSON),
		},
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, checkoutResp{SessionID: session.ID, CheckoutURL: session.URL})
}
