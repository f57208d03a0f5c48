package campaign

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/handler"
	"github.com/waflow/waflow/internal/middleware"
	"github.com/waflow/waflow/internal/model"
	campaignService "github.com/waflow/waflow/internal/service/campaign"
)

type Handler struct {
	service *campaignService.Service
}

func NewHandler(service *campaignService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	campaigns := r.Group("/campaigns")
	{
		campaigns.POST("", h.Create)
		campaigns.GET("", h.List)
		campaigns.GET("/:id", h.Get)
		campaigns.PUT("/:id", h.Update)
		campaigns.DELETE("/:id", h.Delete)
		campaigns.POST("/:id/send", h.Send)
		campaigns.POST("/:id/pause", h.Pause)
		campaigns.POST("/:id/cancel", h.Cancel)
		campaigns.GET("/:id/stats", h.Stats)
	}
}

type createRequest struct {
	Name           string                  `json:"name" binding:"required"`
	Description    string                  `json:"description"`
	TemplateID     uuid.UUID               `json:"template_id" binding:"required"`
	ScheduledDate  *time.Time              `json:"scheduled_date"`
	ContactIDs     []uuid.UUID             `json:"contact_ids"`
	ContactFilters *model.ContactFilters   `json:"contact_filters"`
	HeaderValue    string                  `json:"header_value"`
	BodyParameters []string                `json:"body_parameters"`
	Settings       *model.CampaignSettings `json:"settings"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	campaign, err := h.service.Create(c.Request.Context(), middleware.AccountID(c), campaignService.CreateInput{
		Name:           req.Name,
		Description:    req.Description,
		TemplateID:     req.TemplateID,
		ScheduledDate:  req.ScheduledDate,
		ContactIDs:     req.ContactIDs,
		ContactFilters: req.ContactFilters,
		HeaderValue:    req.HeaderValue,
		BodyParameters: req.BodyParameters,
		Settings:       req.Settings,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(campaign))
}

func (h *Handler) List(c *gin.Context) {
	campaigns, err := h.service.List(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaigns))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	campaign, err := h.service.Get(c.Request.Context(), middleware.AccountID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaign))
}

type updateRequest struct {
	Name           string                  `json:"name"`
	Description    string                  `json:"description"`
	ScheduledDate  *time.Time              `json:"scheduled_date"`
	HeaderValue    string                  `json:"header_value"`
	BodyParameters []string                `json:"body_parameters"`
	Settings       *model.CampaignSettings `json:"settings"`
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	campaign, err := h.service.Update(c.Request.Context(), middleware.AccountID(c), id, campaignService.UpdateInput{
		Name:           req.Name,
		Description:    req.Description,
		ScheduledDate:  req.ScheduledDate,
		HeaderValue:    req.HeaderValue,
		BodyParameters: req.BodyParameters,
		Settings:       req.Settings,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaign))
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.AccountID(c), id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) Send(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	campaign, err := h.service.Send(c.Request.Context(), middleware.AccountID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(campaign))
}

func (h *Handler) Pause(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	if err := h.service.Pause(c.Request.Context(), middleware.AccountID(c), id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	if err := h.service.Cancel(c.Request.Context(), middleware.AccountID(c), id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) Stats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	campaign, err := h.service.Get(c.Request.Context(), middleware.AccountID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"status": campaign.Status,
		"stats":  campaign.Stats,
	}))
}
