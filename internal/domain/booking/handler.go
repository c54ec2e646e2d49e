package booking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebook/booking/internal/platform/auth"
	"github.com/carebook/booking/internal/platform/events"
	"github.com/carebook/booking/internal/platform/session"
	"github.com/carebook/booking/pkg/pagination"
)

const publishTimeout = 5 * time.Second

type Handler struct {
	svc       *Service
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewHandler(svc *Service, publisher events.Publisher, logger zerolog.Logger) *Handler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{svc: svc, publisher: publisher, logger: logger.With().Str("component", "booking").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	book := auth.RequireCapability(auth.CapBookAppointment)
	schedule := auth.RequireCapability(auth.CapViewOwnSchedule)

	// Booking wizard
	api.POST("/booking", h.Start, book)
	api.GET("/booking", h.CurrentDraft, book)
	api.DELETE("/booking", h.Abandon, book)
	api.GET("/booking/doctors", h.ListDoctors, book)
	api.PUT("/booking/doctor", h.ChooseDoctor, book)
	api.PUT("/booking/slot", h.ChooseSlot, book)
	api.PUT("/booking/reason", h.SetReason, book)
	api.POST("/booking/commit", h.Commit, book)
	api.GET("/booking/confirmation", h.Confirmation, book)

	api.GET("/doctors/:id/availability", h.Availability, book)
	api.GET("/appointments", h.ListAppointments, book)
	api.GET("/appointments/:id", h.GetAppointment, book)

	api.GET("/doctors/me/appointments", h.DoctorDay, schedule)
}

type startRequest struct {
	PatientID string `json:"patient_id" validate:"omitempty,uuid"`
}

type chooseDoctorRequest struct {
	DoctorID string `json:"doctor_id" validate:"required,uuid"`
}

type chooseSlotRequest struct {
	Date string `json:"date" validate:"required,isodate"`
	Time string `json:"time" validate:"required,hhmm"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return c.Validate(req)
}

func caller(c echo.Context) (auth.User, error) {
	u, ok := auth.UserFromContext(c.Request().Context())
	if !ok {
		return auth.User{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return u, nil
}

// sessionKey binds the cookie session to the authenticated caller.
func sessionKey(c echo.Context) (SessionKey, auth.User, error) {
	id := session.IDFromContext(c.Request().Context())
	if id == "" {
		return SessionKey{}, auth.User{}, echo.NewHTTPError(http.StatusUnauthorized, "missing booking session")
	}
	u, err := caller(c)
	if err != nil {
		return SessionKey{}, auth.User{}, err
	}
	return SessionKey{ID: id, Owner: u.ID}, u, nil
}

// httpError maps scheduling errors onto HTTP statuses. Anything unrecognized
// is logged and reported as 500 without detail.
func (h *Handler) httpError(c echo.Context, err error) error {
	var incomplete *IncompleteDraftError
	switch {
	case errors.As(err, &incomplete):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   ErrIncompleteDraft.Error(),
			"missing": incomplete.Missing,
		})
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDoubleBooking):
		return echo.NewHTTPError(http.StatusConflict, ErrDoubleBooking.Error())
	}
	rid, _ := c.Get("request_id").(string)
	h.logger.Error().Err(err).Str("request_id", rid).Str("path", c.Path()).Msg("booking request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// -- Wizard --

// Start begins a new draft for the caller. Admins may start one on behalf
// of a patient by passing patient_id.
func (h *Handler) Start(c echo.Context) error {
	key, u, err := sessionKey(c)
	if err != nil {
		return err
	}
	var req startRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	patientID := u.ID
	if req.PatientID != "" {
		if u.Role != auth.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "only admins may book for another patient")
		}
		patientID = uuid.MustParse(req.PatientID)
	}

	d, err := h.svc.Start(c.Request().Context(), key, patientID)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, d.View())
}

func (h *Handler) ChooseDoctor(c echo.Context) error {
	key, _, err := sessionKey(c)
	if err != nil {
		return err
	}
	var req chooseDoctorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := h.svc.ChooseDoctor(c.Request().Context(), key, uuid.MustParse(req.DoctorID))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, d.View())
}

func (h *Handler) ChooseSlot(c echo.Context) error {
	key, _, err := sessionKey(c)
	if err != nil {
		return err
	}
	var req chooseSlotRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := h.svc.ChooseSlot(c.Request().Context(), key, req.Date, req.Time)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, d.View())
}

func (h *Handler) SetReason(c echo.Context) error {
	key, _, err := sessionKey(c)
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := h.svc.SetReason(c.Request().Context(), key, req.Reason)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, d.View())
}

func (h *Handler) CurrentDraft(c echo.Context) error {
	key, _, err := sessionKey(c)
	if err != nil {
		return err
	}
	d, err := h.svc.CurrentDraft(c.Request().Context(), key)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, d.View())
}

func (h *Handler) Abandon(c echo.Context) error {
	key, _, err := sessionKey(c)
	if err != nil {
		return err
	}
	if err := h.svc.Abandon(c.Request().Context(), key); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Commit books the draft. A lost race answers 409 and leaves the draft in
// place so the patient can pick another time.
func (h *Handler) Commit(c echo.Context) error {
	key, _, err := sessionKey(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	appt, err := h.svc.Commit(ctx, key)
	if err != nil {
		return h.httpError(c, err)
	}

	h.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Str("slot", appt.Slot.String()).
		Msg("appointment booked")
	h.publishBooked(ctx, appt)

	return c.JSON(http.StatusCreated, appt.View())
}

// publishBooked never fails the request; the booking is already durable.
func (h *Handler) publishBooked(ctx context.Context, appt *Appointment) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := h.publisher.PublishAppointmentBooked(ctx, events.AppointmentBooked{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.Slot.Date.String(),
		Time:          appt.Slot.Time.String(),
		Reason:        appt.Reason,
		BookedAt:      appt.CreatedAt,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("publish appointment.booked failed")
	}
}

func (h *Handler) Confirmation(c echo.Context) error {
	key, _, err := sessionKey(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.Confirmation(c.Request().Context(), key)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, appt.View())
}

// -- Lookups --

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return h.httpError(c, err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Availability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	times, err := h.svc.AvailableTimes(c.Request().Context(), doctorID, date)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, times)
}

func views(appts []*Appointment) []AppointmentView {
	out := make([]AppointmentView, len(appts))
	for i, a := range appts {
		out[i] = a.View()
	}
	return out
}

func (h *Handler) ListAppointments(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatientAppointments(c.Request().Context(), u.ID, pg.Limit, pg.Offset)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views(items), total, pg))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetPatientAppointment(c.Request().Context(), u.ID, id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, appt.View())
}

// DoctorDay lists the caller's appointments on ?date=. Admins pass
// ?doctor_id= to look at any doctor.
func (h *Handler) DoctorDay(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	doctorID := u.ID
	if v := c.QueryParam("doctor_id"); v != "" {
		if u.Role != auth.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "only admins may view another doctor's schedule")
		}
		if doctorID, err = uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	items, err := h.svc.DoctorDay(c.Request().Context(), doctorID, date)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, views(items))
}
