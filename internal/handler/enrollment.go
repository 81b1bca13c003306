package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
	"github.com/skagit-alpine-club/registration-server/internal/service"
)

// EnrollmentHandler serves a member's enrolled courses, their purchase
// ledger and the refund flow.
type EnrollmentHandler struct {
	Courses     *repository.CourseRepo
	Orders      *repository.OrderRepo
	Fulfillment *service.Fulfillment
}

func NewEnrollmentHandler(courses *repository.CourseRepo, orders *repository.OrderRepo, f *service.Fulfillment) *EnrollmentHandler {
	return &EnrollmentHandler{Courses: courses, Orders: orders, Fulfillment: f}
}

// MyCourses lists the courses the member is enrolled in.
func (h *EnrollmentHandler) MyCourses(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	courses, err := h.Courses.ListForParticipant(c.Request().Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}
	if courses == nil {
		courses = []model.Course{}
	}
	return c.JSON(http.StatusOK, courses)
}

// MyPurchases lists the member's ledger lines, newest first.
func (h *EnrollmentHandler) MyPurchases(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	purchases, err := h.Orders.PurchasesByUser(c.Request().Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}
	if purchases == nil {
		purchases = []model.CourseBought{}
	}
	return c.JSON(http.StatusOK, purchases)
}

// Refund unwinds one purchase: partial refund (cost minus cancellation
// fee), withdrawal from the course, seat to the wait list.
func (h *EnrollmentHandler) Refund(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	purchaseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid purchase id"})
	}
	purchase, err := h.Fulfillment.Refund(c.Request().Context(), userID, purchaseID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, purchase)
}
