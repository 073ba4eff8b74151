package booking

import (
	"context"
	"errors"
	"net/http"
	"time"

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
	userGroup.POST("/appointments", h.Book)
	userGroup.GET("/appointments/scheduled", h.Scheduled)
	userGroup.GET("/appointments/completed", h.Completed)
	userGroup.GET("/appointments/:id", h.GetByID)
	userGroup.DELETE("/appointments/:id", h.Cancel)
	userGroup.GET("/history", h.History)
	userGroup.GET("/journal", h.Journal)

	adminGroup := api.Group("", auth.RequireRole("admin", "caregiver"))
	adminGroup.GET("/appointments", h.ListAll)
	adminGroup.PUT("/appointments/:id", h.Reschedule)
	adminGroup.POST("/appointments/:id/complete", h.Complete)
}

func mapBookingError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoLinkedSlot):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoFreeSlot), errors.Is(err, ErrSlotTaken), errors.Is(err, ErrDuplicateBooking):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type bookRequest struct {
	CaregiverID uuid.UUID `json:"caregiver_id"`
	At          time.Time `json:"at"`
	Description string    `json:"description"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.Book(c.Request().Context(), BookRequest{
		PatientID:   patientID,
		CaregiverID: req.CaregiverID,
		At:          req.At,
		Description: req.Description,
	})
	if err != nil {
		return mapBookingError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

type rescheduleRequest struct {
	OldSlotID   uuid.UUID `json:"old_slot_id"`
	NewSlotID   uuid.UUID `json:"new_slot_id"`
	CaregiverID uuid.UUID `json:"caregiver_id"`
	At          time.Time `json:"at"`
	Status      string    `json:"status"`
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Reschedule(c.Request().Context(), id, ReschedulePayload{
		OldSlotID:   req.OldSlotID,
		NewSlotID:   req.NewSlotID,
		CaregiverID: req.CaregiverID,
		At:          req.At,
		Status:      req.Status,
	})
	if err != nil {
		return mapBookingError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		return mapBookingError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return mapBookingError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return mapBookingError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Scheduled(c echo.Context) error {
	return h.listForCaller(c, h.svc.Scheduled)
}

func (h *Handler) Completed(c echo.Context) error {
	return h.listForCaller(c, h.svc.Completed)
}

func (h *Handler) History(c echo.Context) error {
	return h.listForCaller(c, h.svc.History)
}

func (h *Handler) Journal(c echo.Context) error {
	return h.listForCaller(c, h.svc.Journal)
}

func (h *Handler) listForCaller(c echo.Context, list func(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	items, err := list(c.Request().Context(), patientID)
	if err != nil {
		return mapBookingError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListAll(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAll(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return mapBookingError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// callerID resolves the authenticated user id from the request context.
func callerID(c echo.Context) (uuid.UUID, error) {
	raw := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	return id, nil
}
