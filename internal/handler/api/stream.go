package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"DeepInfo/internal/domain/models"
	"DeepInfo/internal/service/metrics"
	xhttp "DeepInfo/pkg/http"
	xlogger "DeepInfo/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamMessage is what the server writes on the session socket.
type streamMessage struct {
	Frame *models.ChartFrame `json:"frame,omitempty"`
	Error string             `json:"error,omitempty"`
}

// Stream upgrades to a websocket that pushes every frame of a session and
// accepts StreamCommand edits from the client.
func (h *ChartEchoHandler) Stream(c echo.Context) error {
	id := c.Param("id")
	frames, unsubscribe, err := h.charts.Subscribe(id)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed", xlogger.String("session", id), xlogger.Error(err))
		return nil
	}
	defer conn.Close()
	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	replies := make(chan string, 4)
	go h.readCommands(ctx, cancel, conn, id, replies)

	if frame, err := h.charts.Render(id); err == nil {
		if err := writeJSON(conn, streamMessage{Frame: &frame}); err != nil {
			return nil
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return nil
			}
			if err := writeJSON(conn, streamMessage{Frame: &frame}); err != nil {
				h.logger.Debug("stream write failed", xlogger.String("session", id), xlogger.Error(err))
				return nil
			}
		case msg := <-replies:
			if err := writeJSON(conn, streamMessage{Error: msg}); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

func (h *ChartEchoHandler) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, id string, replies chan<- string) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var cmd models.StreamCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("stream read failed", xlogger.String("session", id), xlogger.Error(err))
			}
			return
		}
		// frames produced by accepted commands reach the client through the subscription
		if err := h.apply(id, cmd); err != nil {
			select {
			case replies <- err.Error():
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

func (h *ChartEchoHandler) apply(id string, cmd models.StreamCommand) error {
	var err error
	switch cmd.Op {
	case "start":
		_, err = h.charts.SetStartTime(id, cmd.Time)
	case "end":
		_, err = h.charts.SetEndTime(id, cmd.Time)
	case "resolution":
		_, err = h.charts.SetResolution(id, cmd.Value)
	case "toggle":
		_, err = h.charts.Toggle(id, cmd.Value)
	case "hover":
		_, err = h.charts.Hover(id, cmd.Value)
	case "leave":
		_, err = h.charts.Leave(id)
	default:
		err = fmt.Errorf("unknown op %q", cmd.Op)
	}
	return err
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
