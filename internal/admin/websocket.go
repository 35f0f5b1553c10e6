package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Brownie44l1/httpd/internal/logger"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamMessage is one access log event as sent to websocket clients.
type streamMessage struct {
	logger.Event
	Line string `json:"line"`
}

// handleWebSocket upgrades and streams access log events until the client
// goes away or the hub stops.
func (a *Admin) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", logger.Err(err))
		return
	}
	defer conn.Close()

	events := a.hub.Subscribe()
	defer a.hub.Unsubscribe(events)

	// Read pump, only to notice the client leaving
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return

		case e, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
					time.Now().Add(writeWait))
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Event: e, Line: e.String()}); err != nil {
				a.log.Debug("websocket write failed", logger.Err(err))
				return
			}
		}
	}
}
