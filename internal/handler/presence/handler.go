package presence

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/duetapp/notify-api/internal/handler"
	presenceTracker "github.com/duetapp/notify-api/internal/presence"
)

type Handler struct {
	tracker *presenceTracker.Tracker
}

func NewHandler(tracker *presenceTracker.Tracker) *Handler {
	return &Handler{tracker: tracker}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	presence := r.Group("/presence")
	{
		presence.GET("/:id", h.Status)
		presence.POST("/status", h.BulkStatus)
	}
}

func (h *Handler) Status(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user ID"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"user_id": id,
		"online":  h.tracker.IsOnline(id),
	}))
}

type bulkStatusRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required"`
}

// BulkStatus resolves many users in one request; unknown ids are offline.
func (h *Handler) BulkStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.tracker.BulkStatus(req.UserIDs)))
}
