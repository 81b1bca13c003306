package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// WaitListHandler serves a member's interactions with course wait
// lists.  Joining is only possible while the course is full; that check
// lives in the repository under the course row lock.
type WaitListHandler struct {
	WaitLists *repository.WaitListRepo
	Courses   *repository.CourseRepo
}

func NewWaitListHandler(w *repository.WaitListRepo, courses *repository.CourseRepo) *WaitListHandler {
	return &WaitListHandler{WaitLists: w, Courses: courses}
}

// Join queues the member for a full course and returns their place.
// Members already enrolled in the course have nothing to wait for.
func (h *WaitListHandler) Join(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	ctx := c.Request().Context()
	enrolled, err := h.Courses.IsParticipant(ctx, courseID, userID)
	if err != nil {
		return jsonError(c, err)
	}
	if enrolled {
		return jsonError(c, fmt.Errorf("%w: already enrolled in course %d", repository.ErrConflict, courseID))
	}
	entry, err := h.WaitLists.Join(ctx, courseID, userID, currentEmail(c))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// Entry returns the member's entry for one course, with its current
// place, or 404 when they are not queued.
func (h *WaitListHandler) Entry(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	entry, err := h.WaitLists.EntryFor(c.Request().Context(), courseID, userID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// Leave removes the member's entry for a course.
func (h *WaitListHandler) Leave(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	if err := h.WaitLists.Leave(c.Request().Context(), courseID, userID); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Mine lists every wait list the member sits on, with places.
func (h *WaitListHandler) Mine(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	entries, err := h.WaitLists.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}
	if entries == nil {
		entries = []model.WaitListEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}
