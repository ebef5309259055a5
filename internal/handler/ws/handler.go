package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/duetapp/notify-api/internal/handler"
	"github.com/duetapp/notify-api/internal/middleware"
	wsHub "github.com/duetapp/notify-api/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the gateway in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	hub    *wsHub.Hub
	logger zerolog.Logger
}

func NewHandler(hub *wsHub.Hub, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Connect)
}

// Connect upgrades the request and runs the session pumps. Registration
// marks the user online when this is their first live session.
func (h *Handler) Connect(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("websocket upgrade failed")
		return
	}

	session := wsHub.NewSession(h.hub, conn, userID)
	h.hub.Register(session)

	go session.WritePump()
	go session.ReadPump()
}
