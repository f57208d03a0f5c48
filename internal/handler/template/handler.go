package template

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/handler"
	"github.com/waflow/waflow/internal/middleware"
	templateService "github.com/waflow/waflow/internal/service/template"
)

type Handler struct {
	service *templateService.Service
}

func NewHandler(service *templateService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	templates := r.Group("/templates")
	{
		templates.GET("", h.List)
		templates.POST("", h.Create)
		templates.POST("/sync", h.Sync)
		templates.GET("/:id", h.Get)
		templates.GET("/analysis/:name", h.Analysis)
		templates.DELETE("/name/:name", h.Delete)
	}
}

func (h *Handler) List(c *gin.Context) {
	templates, err := h.service.List(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(templates))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid template ID"))
		return
	}

	template, err := h.service.Get(c.Request.Context(), middleware.AccountID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(template))
}

func (h *Handler) Sync(c *gin.Context) {
	count, err := h.service.Sync(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"synced": count}))
}

func (h *Handler) Analysis(c *gin.Context) {
	analysis, err := h.service.Analysis(c.Request.Context(), middleware.AccountID(c), c.Param("name"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(analysis))
}

func (h *Handler) Create(c *gin.Context) {
	var definition map[string]interface{}
	if err := c.ShouldBindJSON(&definition); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.Create(c.Request.Context(), middleware.AccountID(c), definition); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(nil))
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.AccountID(c), c.Param("name")); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
