package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
	"github.com/skagit-alpine-club/registration-server/internal/service"
)

// AdminHandler bundles the administrative surface: catalog management,
// the registration settings singleton, discounts, the early signup
// allow list, role changes and the manual waitlist backfill trigger.
type AdminHandler struct {
	Types     *repository.CourseTypeRepo
	Courses   *repository.CourseRepo
	Settings  *repository.SettingsRepo
	Discounts *repository.DiscountRepo
	Users     *repository.UserRepo
	Waitlist  *service.Waitlist
}

func NewAdminHandler(types *repository.CourseTypeRepo, courses *repository.CourseRepo,
	settings *repository.SettingsRepo, discounts *repository.DiscountRepo,
	users *repository.UserRepo, waitlist *service.Waitlist) *AdminHandler {
	return &AdminHandler{Types: types, Courses: courses, Settings: settings,
		Discounts: discounts, Users: users, Waitlist: waitlist}
}

// ----- catalog -----

type createCourseTypeReq struct {
	Name          string  `json:"name"`
	Abbreviation  string  `json:"abbreviation"`
	Description   string  `json:"description"`
	RequirementID *uint64 `json:"requirement_id"`
	Visible       bool    `json:"visible"`
	CostCents     uint32  `json:"cost_cents"`
}

// CreateCourseType adds a course type; the requirement chain is
// verified acyclic before the insert commits.
func (h *AdminHandler) CreateCourseType(c echo.Context) error {
	var req createCourseTypeReq
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	record := repository.CourseTypeRecord{
		Name:          req.Name,
		Abbreviation:  req.Abbreviation,
		Description:   req.Description,
		RequirementID: req.RequirementID,
		Visible:       req.Visible,
		CostCents:     req.CostCents,
	}
	if err := h.Types.Create(c.Request().Context(), &record); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, toCourseType(record))
}

// ListCourseTypes returns every course type, hidden ones included.
func (h *AdminHandler) ListCourseTypes(c echo.Context) error {
	records, err := h.Types.List(c.Request().Context(), false)
	if err != nil {
		return jsonError(c, err)
	}
	types := make([]model.CourseType, 0, len(records))
	for _, r := range records {
		types = append(types, toCourseType(r))
	}
	return c.JSON(http.StatusOK, types)
}

type setRequirementReq struct {
	RequirementID *uint64 `json:"requirement_id"`
}

// SetRequirement repoints a course type's prerequisite.
func (h *AdminHandler) SetRequirement(c echo.Context) error {
	typeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course type id"})
	}
	var req setRequirementReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Types.SetRequirement(c.Request().Context(), typeID, req.RequirementID); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type setVisibleReq struct {
	Visible bool `json:"visible"`
}

// SetTypeVisible toggles a course type's catalog visibility.
func (h *AdminHandler) SetTypeVisible(c echo.Context) error {
	typeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course type id"})
	}
	var req setVisibleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Types.SetVisible(c.Request().Context(), typeID, req.Visible); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type addGearReq struct {
	CourseTypeID *uint64 `json:"course_type_id"`
	Item         string  `json:"item"`
}

// AddGear adds an item to a course type's gear list, or to the
// club-wide list when course_type_id is omitted.
func (h *AdminHandler) AddGear(c echo.Context) error {
	var req addGearReq
	if err := c.Bind(&req); err != nil || req.Item == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "item required"})
	}
	record := repository.GearItemRecord{CourseTypeID: req.CourseTypeID, Item: req.Item}
	if err := h.Types.AddGear(c.Request().Context(), &record); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, model.GearItem{ID: record.ID, CourseTypeID: record.CourseTypeID, Item: record.Item})
}

type createCourseReq struct {
	TypeID           uint64 `json:"type_id"`
	Specifics        string `json:"specifics"`
	Capacity         uint32 `json:"capacity"`
	ExpectedCapacity uint32 `json:"expected_capacity"`
	Visible          bool   `json:"visible"`
	Dates            []struct {
		Name  string    `json:"name"`
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"dates"`
}

// CreateCourse schedules an offering of a course type with its dates.
func (h *AdminHandler) CreateCourse(c echo.Context) error {
	var req createCourseReq
	if err := c.Bind(&req); err != nil || req.TypeID == 0 || req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type_id and capacity required"})
	}
	if req.ExpectedCapacity < req.Capacity {
		req.ExpectedCapacity = req.Capacity
	}
	course := model.Course{
		TypeID:           req.TypeID,
		Specifics:        req.Specifics,
		Capacity:         req.Capacity,
		ExpectedCapacity: req.ExpectedCapacity,
		Visible:          req.Visible,
	}
	for _, d := range req.Dates {
		course.Dates = append(course.Dates, model.CourseDate{Name: d.Name, Start: d.Start, End: d.End})
	}
	if err := h.Courses.Create(c.Request().Context(), &course); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, course)
}

type addInstructorReq struct {
	UserID uint64 `json:"user_id"`
}

// AddInstructor assigns an instructor to a course.
func (h *AdminHandler) AddInstructor(c echo.Context) error {
	courseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	var req addInstructorReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	if err := h.Courses.AddInstructor(c.Request().Context(), courseID, req.UserID); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveInstructor unassigns an instructor from a course.
func (h *AdminHandler) RemoveInstructor(c echo.Context) error {
	courseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if err := h.Courses.RemoveInstructor(c.Request().Context(), courseID, userID); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Backfill manually offers a freed seat on a course to the head of its
// wait list, for when an admin vacates a seat out of band.  Responds
// with whether an offer went out; with nobody waiting the seat is left
// alone.
func (h *AdminHandler) Backfill(c echo.Context) error {
	courseID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	offered, err := h.Waitlist.OfferNextSeat(c.Request().Context(), courseID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"offered": offered})
}

// ----- registration settings -----

// GetSettings returns the registration policy singleton.
func (h *AdminHandler) GetSettings(c echo.Context) error {
	settings, err := h.Settings.Get(c.Request().Context())
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// CreateSettings creates the singleton; a second attempt conflicts.
func (h *AdminHandler) CreateSettings(c echo.Context) error {
	var settings model.RegistrationSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Settings.Create(c.Request().Context(), &settings); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, settings)
}

// UpdateSettings replaces the singleton's fields.
func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	var settings model.RegistrationSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Settings.Update(c.Request().Context(), &settings); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

type earlySignupReq struct {
	Email string `json:"email"`
}

// AddEarlySignup grants an email early registration access.
func (h *AdminHandler) AddEarlySignup(c echo.Context) error {
	var req earlySignupReq
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.Settings.AddEarlySignup(c.Request().Context(), email); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- discounts -----

// CreateDiscount grants a returning student a percentage coupon.
func (h *AdminHandler) CreateDiscount(c echo.Context) error {
	var discount model.PreviousStudentDiscount
	if err := c.Bind(&discount); err != nil || discount.Email == "" || discount.CouponID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and coupon_id required"})
	}
	discount.Email = strings.ToLower(strings.TrimSpace(discount.Email))
	if err := h.Discounts.Create(c.Request().Context(), &discount); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, discount)
}

// DeleteDiscount revokes a discount grant.
func (h *AdminHandler) DeleteDiscount(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid discount id"})
	}
	if err := h.Discounts.Delete(c.Request().Context(), id); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- users -----

type setRoleReq struct {
	Role string `json:"role"`
}

// SetRole promotes or demotes a user.
func (h *AdminHandler) SetRole(c echo.Context) error {
	userID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req setRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role != RoleMember && role != RoleInstructor && role != RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}
	if err := h.Users.SetRole(c.Request().Context(), userID, role); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
