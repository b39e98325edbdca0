package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/backoffice/realtime"
	"github.com/yeremiapane/backoffice/utils"
)

type RealtimeController struct {
	Hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewRealtimeController accepts WebSocket upgrades from the given origins, or
// from any origin when the list is empty.
func NewRealtimeController(hub *realtime.Hub, origins []string) *RealtimeController {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &RealtimeController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

func (rc *RealtimeController) subscription(c *gin.Context) realtime.Subscription {
	sub := realtime.Subscription{
		Channel:     strings.TrimSpace(c.DefaultQuery("channel", realtime.ChannelOrders)),
		From:        c.Query("from"),
		LastEventID: c.GetHeader("Last-Event-ID"),
	}
	if sub.LastEventID == "" {
		sub.LastEventID = c.Query("lastEventId")
	}
	if id, ok := currentUserID(c, nil); ok {
		sub.UserID = id
	}
	return sub
}

// Stream serves text/event-stream until the client goes away.
func (rc *RealtimeController) Stream(c *gin.Context) {
	sub := rc.subscription(c)
	realtime.SetStreamHeaders(c.Writer.Header())
	c.Status(http.StatusOK)

	err := rc.Hub.Serve(c.Request.Context(), realtime.NewStreamSink(c.Writer), sub)
	if err != nil {
		utils.InfoLogger.Debugf("[SSE] stream closed: %v", err)
	}
}

// Preflight answers a bare OPTIONS on the stream endpoint.
func (rc *RealtimeController) Preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// WebSocket mirrors Stream over a WebSocket connection.
func (rc *RealtimeController) WebSocket(c *gin.Context) {
	sub := rc.subscription(c)
	conn, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Warnf("[SSE] websocket upgrade failed: %v", err)
		return
	}

	err = rc.Hub.ServeWebSocket(c.Request.Context(), conn, sub)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		utils.InfoLogger.Debugf("[SSE] websocket closed: %v", err)
	}
}

// Clients lists the open realtime connections.
func (rc *RealtimeController) Clients(c *gin.Context) {
	clients := rc.Hub.Clients()
	c.JSON(http.StatusOK, gin.H{"count": len(clients), "clients": clients})
}
