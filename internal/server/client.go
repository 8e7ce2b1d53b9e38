package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mikkokallio/goblin-tactics/pkg/api"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client - посредник между WebSocket и трансляцией. Зритель анонимен:
// ни логина, ни состояния между подключениями.
type Client struct {
	srv  *Server
	conn *websocket.Conn

	// send - исходящие кадры. Канал не закрывается: писателей
	// несколько (хаб, воспроизведение, ответы на команды), жизнь
	// writePump обрывает quit.
	send chan api.ServerMessage
	quit chan struct{}

	// hubID - подписка на живую трансляцию, -1 когда её нет.
	hubID int

	// play - активное воспроизведение записи, nil когда его нет.
	// Поле трогает только readPump.
	play *playback
}

func newClient(s *Server, conn *websocket.Conn) *Client {
	return &Client{
		srv:   s,
		conn:  conn,
		send:  make(chan api.ServerMessage, 256),
		quit:  make(chan struct{}),
		hubID: -1,
	}
}

// forward переливает кадры хаба в личную очередь клиента. Переполнение
// очереди - потеря кадра, как и в самом хабе.
func (c *Client) forward(updates <-chan api.ServerMessage) {
	for msg := range updates {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// trySend ставит сообщение в очередь без блокировки.
func (c *Client) trySend(msg api.ServerMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendInfo(text string) {
	msg, err := api.NewServerMessage(api.MsgInfo, api.InfoPayload{Text: text})
	if err != nil {
		return
	}
	c.trySend(msg)
}

func (c *Client) sendError(text string) {
	msg, err := api.NewServerMessage(api.MsgError, api.ErrorPayload{Text: text})
	if err != nil {
		return
	}
	c.trySend(msg)
}

// stopWatching отключает клиента и от живой трансляции, и от записи.
func (c *Client) stopWatching() {
	if c.hubID >= 0 {
		c.srv.hub.Unregister(c.hubID)
		c.hubID = -1
	}
	if c.play != nil {
		c.play.stop()
		c.play = nil
	}
}

// readPump читает команды зрителя
func (c *Client) readPump() {
	defer func() {
		c.stopWatching()
		close(c.quit)
		if err := c.conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("failed to close websocket connection")
		}
		logger.Log.Info("Spectator disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("failed to set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logger.Log.WithError(err).Warn("failed to set pong read deadline")
		}
		return nil
	})

	for {
		var cmd api.ClientCommand
		err := c.conn.ReadJSON(&cmd)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Log.Errorf("WS Error: %v", err)
			}
			break
		}
		c.dispatch(cmd)
	}
}

func (c *Client) dispatch(cmd api.ClientCommand) {
	h, ok := c.srv.handlers[cmd.Action]
	if !ok {
		c.sendError(fmt.Sprintf("unknown action: %s", cmd.Action))
		return
	}
	if err := h(c, cmd.Payload); err != nil {
		c.sendError(err.Error())
	}
}

// writePump отправляет кадры клиенту + Ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("failed to close websocket connection in writePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set write deadline")
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logger.Log.WithError(err).Debug("write json message failed")
				return
			}

		case <-c.quit:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set write deadline")
			}
			if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
				logger.Log.WithError(err).Debug("write close message failed")
			}
			return

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
