package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	webhookService "github.com/waflow/waflow/internal/service/webhook"
	"github.com/waflow/waflow/internal/whatsapp"
)

type Handler struct {
	reconciler  *webhookService.Reconciler
	verifyToken string
	logger      zerolog.Logger
}

func NewHandler(reconciler *webhookService.Reconciler, verifyToken string, logger zerolog.Logger) *Handler {
	return &Handler{
		reconciler:  reconciler,
		verifyToken: verifyToken,
		logger:      logger.With().Str("component", "webhook_handler").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	webhooks := r.Group("/webhooks/whatsapp")
	{
		webhooks.GET("", h.Verify)
		webhooks.POST("", h.Receive)
	}
}

// Verify answers the provider's subscription handshake by echoing the
// challenge when the token matches.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// Receive applies one webhook payload. The provider retries on non-200,
// so delivery problems are logged and acknowledged rather than surfaced.
func (h *Handler) Receive(c *gin.Context) {
	var payload whatsapp.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn().Err(err).Msg("unreadable webhook payload")
		c.String(http.StatusOK, "OK")
		return
	}

	if err := h.reconciler.Process(c.Request.Context(), &payload); err != nil {
		h.logger.Error().Err(err).Msg("webhook processing failed")
	}
	c.String(http.StatusOK, "OK")
}
