package doctor

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/middleware"
	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/service/doctor"
	"github.com/carebook/booking-api/internal/service/schedule"
	apperrors "github.com/carebook/booking-api/pkg/errors"
	"github.com/carebook/booking-api/pkg/httputil"
)

type Handler struct {
	doctorSvc   *doctor.Service
	scheduleSvc *schedule.Service
}

func NewHandler(doctorSvc *doctor.Service, scheduleSvc *schedule.Service) *Handler {
	return &Handler{doctorSvc: doctorSvc, scheduleSvc: scheduleSvc}
}

func (h *Handler) RegisterRoutes(public, doctors *gin.RouterGroup) {
	public.GET("/doctors", h.ListDoctors)
	public.GET("/doctors/:id", h.GetDoctor)
	public.GET("/doctors/:id/slots", h.GetFreeSlots)
	public.GET("/doctors/:id/skill-card", h.GetSkillCard)
	public.GET("/skill-cards", h.ListSkillCards)

	doctors.POST("/doctors/:id/rules", h.CreateRules)
	doctors.POST("/doctors/:id/slots/generate", h.GenerateSlots)
	doctors.PUT("/doctors/:id/skill-card", h.UpsertSkillCard)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	filters := &model.DoctorFilters{
		Specialty: c.Query("specialty"),
	}
	if avail := c.Query("available"); avail != "" {
		parsed, err := strconv.ParseBool(avail)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation("invalid available filter", err))
			return
		}
		filters.Available = &parsed
	}

	doctors, err := h.doctorSvc.ListDoctors(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid doctor ID", err))
		return
	}

	doc, err := h.doctorSvc.GetDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doc)
}

func (h *Handler) GetSkillCard(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid doctor ID", err))
		return
	}

	card, err := h.doctorSvc.GetSkillCard(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, card)
}

func (h *Handler) ListSkillCards(c *gin.Context) {
	cards, err := h.doctorSvc.ListSkillCards(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cards)
}

func (h *Handler) UpsertSkillCard(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid doctor ID", err))
		return
	}

	var req model.UpsertSkillCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	card, err := h.doctorSvc.UpsertSkillCard(c.Request.Context(), id, &req, middleware.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, card)
}

func (h *Handler) CreateRules(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid doctor ID", err))
		return
	}

	actor := middleware.Actor(c)
	if actor == nil || actor.UserID != id {
		httputil.RespondWithError(c, apperrors.Forbidden("", nil))
		return
	}

	var req model.CreateRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	rules, err := h.scheduleSvc.CreateRules(c.Request.Context(), id, req.Rules)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, rules)
}

func (h *Handler) GenerateSlots(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid doctor ID", err))
		return
	}

	actor := middleware.Actor(c)
	if actor == nil || actor.UserID != id {
		httputil.RespondWithError(c, apperrors.Forbidden("", nil))
		return
	}

	var req model.GenerateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	inserted, err := h.scheduleSvc.GenerateSlots(c.Request.Context(), id, req.StartDate, req.Months)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.Response{
		Success: true,
		Data:    gin.H{"slots_created": inserted},
	})
}

func (h *Handler) GetFreeSlots(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid doctor ID", err))
		return
	}

	day := c.Query("day")
	if day == "" {
		httputil.RespondWithError(c, apperrors.Validation("day query parameter is required", nil))
		return
	}

	slots, err := h.scheduleSvc.GetFreeSlots(c.Request.Context(), id, day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}
