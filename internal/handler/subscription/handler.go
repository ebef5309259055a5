package subscription

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/duetapp/notify-api/internal/handler"
	"github.com/duetapp/notify-api/internal/middleware"
	"github.com/duetapp/notify-api/internal/model"
	subscriptionService "github.com/duetapp/notify-api/internal/service/subscription"
	apperrors "github.com/duetapp/notify-api/pkg/errors"
)

type Handler struct {
	service        subscriptionService.Service
	vapidPublicKey string
}

func NewHandler(service subscriptionService.Service, vapidPublicKey string) *Handler {
	registerValidations()
	return &Handler{service: service, vapidPublicKey: vapidPublicKey}
}

func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("httpsurl", func(fl validator.FieldLevel) bool {
			u, err := url.Parse(fl.Field().String())
			return err == nil && u.Scheme == "https" && u.Host != ""
		})
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	push := r.Group("/push")
	{
		push.GET("/public-key", h.PublicKey)
		push.POST("/subscriptions", h.Subscribe)
		push.DELETE("/subscriptions", h.Unsubscribe)
		push.GET("/subscriptions", h.List)
	}
}

// PublicKey hands clients the application public key they subscribe with.
func (h *Handler) PublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"public_key": h.vapidPublicKey}))
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint" binding:"required,httpsurl"`
	AuthSecret string `json:"auth" binding:"required"`
	P256dhKey  string `json:"p256dh" binding:"required"`
}

func (h *Handler) Subscribe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	outcome, err := h.service.Upsert(c.Request.Context(), userID, req.Endpoint, req.AuthSecret, req.P256dhKey)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	status := http.StatusOK
	if outcome == model.UpsertOutcomeCreated {
		status = http.StatusCreated
	}
	c.JSON(status, handler.NewSuccessResponse(gin.H{"outcome": outcome}))
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// Unsubscribe is idempotent: removing an unknown endpoint succeeds.
func (h *Handler) Unsubscribe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	outcome, err := h.service.Remove(c.Request.Context(), req.Endpoint, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	if outcome == model.RemoveOutcomeNotOwner {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("subscription belongs to another user"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"outcome": outcome}))
}

func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	subs, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(subs))
}
