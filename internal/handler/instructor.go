package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// InstructorHandler serves the instructor surface: the courses they
// teach and the participant rosters of those courses.  Rosters carry
// medical data, so access is limited to the assigned instructors (and
// admins).
type InstructorHandler struct {
	Courses *repository.CourseRepo
}

func NewInstructorHandler(courses *repository.CourseRepo) *InstructorHandler {
	return &InstructorHandler{Courses: courses}
}

// MyCourses lists the courses the instructor is assigned to.
func (h *InstructorHandler) MyCourses(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	courses, err := h.Courses.ListForInstructor(c.Request().Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}
	if courses == nil {
		courses = []model.Course{}
	}
	return c.JSON(http.StatusOK, courses)
}

// Roster returns the participant roster of one course the caller
// teaches.  Admins may read any roster.
func (h *InstructorHandler) Roster(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	courseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	ctx := c.Request().Context()

	if role, _ := c.Get("role").(string); role != RoleAdmin {
		teaches, err := h.Courses.Instructs(ctx, courseID, userID)
		if err != nil {
			return jsonError(c, err)
		}
		if !teaches {
			return jsonError(c, fmt.Errorf("%w: course %d roster", repository.ErrForbidden, courseID))
		}
	}

	roster, err := h.Courses.Roster(ctx, courseID)
	if err != nil {
		return jsonError(c, err)
	}
	if roster == nil {
		roster = []model.RosterRow{}
	}
	return c.JSON(http.StatusOK, roster)
}
