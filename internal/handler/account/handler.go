package account

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waflow/waflow/internal/handler"
	"github.com/waflow/waflow/internal/middleware"
	"github.com/waflow/waflow/internal/model"
	accountService "github.com/waflow/waflow/internal/service/account"
	quotaService "github.com/waflow/waflow/internal/service/quota"
)

type Handler struct {
	service *accountService.Service
	quota   *quotaService.Service
}

func NewHandler(service *accountService.Service, quota *quotaService.Service) *Handler {
	return &Handler{service: service, quota: quota}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	account := r.Group("/account")
	{
		account.GET("", h.Get)
		account.PUT("", h.Update)
		account.GET("/quota", h.Quota)
		account.GET("/whatsapp-config", h.GetWhatsAppConfig)
		account.PUT("/whatsapp-config", h.SaveWhatsAppConfig)
	}
}

func (h *Handler) Get(c *gin.Context) {
	account, err := h.service.Get(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	if account.WhatsAppConfig != nil {
		account.WhatsAppConfig.AccessToken = maskToken(account.WhatsAppConfig.AccessToken)
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(account))
}

type updateRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
}

func (h *Handler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	account, err := h.service.UpdateProfile(c.Request.Context(), middleware.AccountID(c), accountService.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(account))
}

func (h *Handler) Quota(c *gin.Context) {
	remaining, err := h.quota.Remaining(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"remaining": remaining}))
}

func (h *Handler) GetWhatsAppConfig(c *gin.Context) {
	config, err := h.service.GetWhatsAppConfig(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	// Never echo the full token back to the UI.
	config.AccessToken = maskToken(config.AccessToken)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(config))
}

type whatsAppConfigRequest struct {
	BusinessAccountID  string `json:"business_account_id" binding:"required"`
	AccessToken        string `json:"access_token" binding:"required"`
	PhoneNumberID      string `json:"phone_number_id" binding:"required"`
	WebhookVerifyToken string `json:"webhook_verify_token"`
}

func (h *Handler) SaveWhatsAppConfig(c *gin.Context) {
	var req whatsAppConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	config := &model.WhatsAppConfig{
		BusinessAccountID:  req.BusinessAccountID,
		AccessToken:        req.AccessToken,
		PhoneNumberID:      req.PhoneNumberID,
		WebhookVerifyToken: req.WebhookVerifyToken,
	}
	if err := h.service.SaveWhatsAppConfig(c.Request.Context(), middleware.AccountID(c), config); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"configured": true}))
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
