package feedback

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	userGroup := api.Group("", auth.RequireRole("user", "caregiver"))
	userGroup.POST("/feedback", h.Create)
	userGroup.GET("/feedback/appointment/:id", h.ByAppointment)

	staffGroup := api.Group("", auth.RequireRole("caregiver"))
	staffGroup.GET("/feedback", h.ListAll)
	staffGroup.GET("/feedback/rating/:rating", h.ByRating)
	staffGroup.GET("/feedback/summary/:caregiverId", h.Summary)
}

type createRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Comment       string    `json:"comment"`
	Rating        int       `json:"rating"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	f, err := h.svc.Create(c.Request().Context(), req.AppointmentID, patientID, req.Comment, req.Rating)
	switch {
	case errors.Is(err, ErrInvalidRating):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadySubmitted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) ByAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.svc.ByAppointment(c.Request().Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "feedback not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ByRating(c echo.Context) error {
	rating, err := strconv.Atoi(c.Param("rating"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rating")
	}
	items, err := h.svc.ByRating(c.Request().Context(), rating)
	switch {
	case errors.Is(err, ErrInvalidRating):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Summary(c echo.Context) error {
	caregiverID, err := uuid.Parse(c.Param("caregiverId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid caregiver id")
	}
	summary, err := h.svc.SummaryByCaregiver(c.Request().Context(), caregiverID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListAll(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAll(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
