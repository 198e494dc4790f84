package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/telecare-health/telecare/internal/domain/appointment"
	"github.com/telecare-health/telecare/internal/service"
)

type AppointmentHandler struct {
	appointmentSvc *service.AppointmentService
}

func NewAppointmentHandler(appointmentSvc *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointmentSvc: appointmentSvc}
}

type requestAppointmentRequest struct {
	PhysicianID  uuid.UUID `json:"physician_id" binding:"required"`
	ScheduledAt  time.Time `json:"scheduled_at" binding:"required"`
	DurationMins int       `json:"duration_mins" binding:"required"`
	Reason       string    `json:"reason"`
}

func (h *AppointmentHandler) Request(c *gin.Context) {
	var req requestAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := currentClaims(c)
	a, err := h.appointmentSvc.RequestAppointment(c.Request.Context(), &appointment.CreateAppointmentCommand{
		PatientID:    claims.UserID,
		PhysicianID:  req.PhysicianID,
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
		Reason:       req.Reason,
	}, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, a)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.appointmentSvc.GetAppointment(c.Request.Context(), id, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, a)
}

func (h *AppointmentHandler) Confirm(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.appointmentSvc.ConfirmAppointment(c.Request.Context(), id, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, a)
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req cancelAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.appointmentSvc.CancelAppointment(c.Request.Context(), id, req.Reason, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, a)
}

func (h *AppointmentHandler) Complete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.appointmentSvc.CompleteAppointment(c.Request.Context(), id, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, a)
}

func (h *AppointmentHandler) List(c *gin.Context) {
	q := &appointment.ListAppointmentsQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := appointment.Status(raw)
		if !status.IsValid() {
			respondError(c, http.StatusBadRequest, "invalid status filter")
			return
		}
		q.Status = &status
	}

	paged, err := h.appointmentSvc.ListAppointments(c.Request.Context(), q, currentClaims(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, paged)
}
