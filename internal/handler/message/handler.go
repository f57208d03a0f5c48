package message

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/handler"
	"github.com/waflow/waflow/internal/middleware"
	"github.com/waflow/waflow/internal/model"
	messageService "github.com/waflow/waflow/internal/service/message"
)

type Handler struct {
	service *messageService.Service
}

func NewHandler(service *messageService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	messages := r.Group("/messages")
	{
		messages.GET("", h.List)
		messages.GET("/:id", h.Get)
		messages.POST("/reply", h.Reply)
	}
}

func (h *Handler) List(c *gin.Context) {
	filters := model.MessageFilters{
		Direction: model.MessageDirection(c.Query("direction")),
		Status:    model.MessageStatus(c.Query("status")),
	}
	if v := c.Query("contact_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid contact_id filter"))
			return
		}
		filters.ContactID = &id
	}
	if v := c.Query("campaign_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign_id filter"))
			return
		}
		filters.CampaignID = &id
	}
	filters.Limit, _ = strconv.Atoi(c.Query("limit"))
	filters.Offset, _ = strconv.Atoi(c.Query("offset"))

	messages, err := h.service.List(c.Request.Context(), middleware.AccountID(c), &filters)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(messages))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	message, err := h.service.Get(c.Request.Context(), middleware.AccountID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(message))
}

type replyRequest struct {
	ContactID        uuid.UUID  `json:"contact_id" binding:"required"`
	Text             string     `json:"text"`
	TemplateName     string     `json:"template_name"`
	HeaderValue      string     `json:"header_value"`
	BodyParameters   []string   `json:"body_parameters"`
	ReplyToMessageID *uuid.UUID `json:"reply_to_message_id"`
}

func (h *Handler) Reply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	message, err := h.service.Reply(c.Request.Context(), middleware.AccountID(c), messageService.ReplyInput{
		ContactID:        req.ContactID,
		Text:             req.Text,
		TemplateName:     req.TemplateName,
		HeaderValue:      req.HeaderValue,
		BodyParameters:   req.BodyParameters,
		ReplyToMessageID: req.ReplyToMessageID,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(message))
}
