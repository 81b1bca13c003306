package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// CatalogHandler serves the public course catalog and the per-member
// eligibility view of it.
type CatalogHandler struct {
	Types     *repository.CourseTypeRepo
	Courses   *repository.CourseRepo
	Carts     *repository.CartRepo
	WaitLists *repository.WaitListRepo
	Invoices  *repository.WaitListInvoiceRepo
}

func NewCatalogHandler(t *repository.CourseTypeRepo, c *repository.CourseRepo,
	carts *repository.CartRepo, waitLists *repository.WaitListRepo,
	invoices *repository.WaitListInvoiceRepo) *CatalogHandler {
	return &CatalogHandler{Types: t, Courses: c, Carts: carts, WaitLists: waitLists, Invoices: invoices}
}

func toCourseType(r repository.CourseTypeRecord) model.CourseType {
	return model.CourseType{
		ID:            r.ID,
		Name:          r.Name,
		Abbreviation:  r.Abbreviation,
		Description:   r.Description,
		RequirementID: r.RequirementID,
		Visible:       r.Visible,
		CostCents:     r.CostCents,
	}
}

func toGearItems(records []repository.GearItemRecord) []model.GearItem {
	out := make([]model.GearItem, 0, len(records))
	for _, g := range records {
		out = append(out, model.GearItem{ID: g.ID, CourseTypeID: g.CourseTypeID, Item: g.Item})
	}
	return out
}

// ListTypes returns the visible course types.
func (h *CatalogHandler) ListTypes(c echo.Context) error {
	records, err := h.Types.List(c.Request().Context(), true)
	if err != nil {
		return jsonError(c, err)
	}
	types := make([]model.CourseType, 0, len(records))
	for _, r := range records {
		types = append(types, toCourseType(r))
	}
	return c.JSON(http.StatusOK, types)
}

// ListCoursesForType returns the visible courses of one type, with
// dates and participant counts.
func (h *CatalogHandler) ListCoursesForType(c echo.Context) error {
	typeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course type id"})
	}
	courses, err := h.Courses.ListByType(c.Request().Context(), typeID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, courses)
}

type courseDetailResp struct {
	model.Course
	SpotsLeft      uint32 `json:"spots_left"`
	Full           bool   `json:"full"`
	WaitListLength uint32 `json:"wait_list_length"`
	SeatOffersOut  uint32 `json:"seat_offers_out"`
}

// GetCourse returns one course with its availability: open seats, the
// wait list length and how many seat offers are currently out.
func (h *CatalogHandler) GetCourse(c echo.Context) error {
	courseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	ctx := c.Request().Context()
	course, err := h.Courses.GetByID(ctx, courseID)
	if err != nil {
		return jsonError(c, err)
	}
	queued, err := h.WaitLists.CountForCourse(ctx, courseID)
	if err != nil {
		return jsonError(c, err)
	}
	offers, err := h.Invoices.PendingCountForCourse(ctx, courseID, time.Now().UTC())
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, courseDetailResp{
		Course:         *course,
		SpotsLeft:      course.SpotsLeft(),
		Full:           course.IsFull(),
		WaitListLength: queued,
		SeatOffersOut:  offers,
	})
}

// ListGearForType returns the gear list of one course type.
func (h *CatalogHandler) ListGearForType(c echo.Context) error {
	typeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course type id"})
	}
	records, err := h.Types.ListGear(c.Request().Context(), &typeID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, toGearItems(records))
}

// ListClubGear returns the club-wide gear list shown with every course.
func (h *CatalogHandler) ListClubGear(c echo.Context) error {
	records, err := h.Types.ListGear(c.Request().Context(), nil)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, toGearItems(records))
}

// MyCatalog returns the visible course types annotated with whether the
// authenticated member may currently add each one to their cart.
func (h *CatalogHandler) MyCatalog(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	records, err := h.Types.List(ctx, true)
	if err != nil {
		return jsonError(c, err)
	}
	held, err := h.Carts.HeldTypeIDs(ctx, userID)
	if err != nil {
		return jsonError(c, err)
	}
	types := make([]model.CourseType, 0, len(records))
	for _, r := range records {
		types = append(types, toCourseType(r))
	}
	return c.JSON(http.StatusOK, model.AnnotateEligibility(types, held))
}
