package appointment

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/middleware"
	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/service/appointment"
	"github.com/carebook/booking-api/internal/service/booking"
	apperrors "github.com/carebook/booking-api/pkg/errors"
	"github.com/carebook/booking-api/pkg/httputil"
)

type Handler struct {
	bookingSvc *booking.Service
	apptSvc    *appointment.Service
}

func NewHandler(bookingSvc *booking.Service, apptSvc *appointment.Service) *Handler {
	return &Handler{bookingSvc: bookingSvc, apptSvc: apptSvc}
}

func (h *Handler) RegisterRoutes(authed *gin.RouterGroup) {
	authed.POST("/appointments/book", h.BookSlot)
	authed.GET("/appointments", h.ListAppointments)
	authed.GET("/appointments/:id", h.GetAppointment)
	authed.PATCH("/appointments/:id/status", h.UpdateStatus)
	authed.POST("/appointments/:id/consultation", h.SaveConsultation)
}

func (h *Handler) BookSlot(c *gin.Context) {
	actor := middleware.Actor(c)
	if actor == nil {
		httputil.RespondWithError(c, apperrors.Unauthorized("", nil))
		return
	}
	if actor.Role != model.RolePatient {
		httputil.RespondWithError(c, apperrors.Forbidden("only patients can book slots", nil))
		return
	}

	var req model.BookSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	result, err := h.bookingSvc.BookSlot(c.Request.Context(), req.SlotID, actor.UserID, req.Symptoms)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid appointment ID", err))
		return
	}

	appt, err := h.apptSvc.GetAppointment(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{}
	if status := c.Query("status"); status != "" {
		filters.Status = model.AppointmentStatus(status)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation("invalid from timestamp", err))
			return
		}
		filters.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation("invalid to timestamp", err))
			return
		}
		filters.To = t
	}

	appts, err := h.apptSvc.ListAppointments(c.Request.Context(), middleware.Actor(c), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appts)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid appointment ID", err))
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	appt, err := h.apptSvc.UpdateStatus(c.Request.Context(), id, req.Status, middleware.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) SaveConsultation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid appointment ID", err))
		return
	}

	var req model.SaveConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	if err := h.apptSvc.SaveConsultation(c.Request.Context(), id, &req, middleware.Actor(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"saved": true})
}
