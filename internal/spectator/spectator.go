// Пакет spectator - клиентская сторона трансляции. Подключается к
// серверу по WebSocket так же, как любой внешний зритель: получает
// конверты ServerMessage, раскладывает их обратно в DTO и ведет ими
// любой Sink движка - обычно терминальный рендерер.
package spectator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mikkokallio/goblin-tactics/internal/engine"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

type Client struct {
	url  string
	sink engine.Sink
	log  *logrus.Entry
}

func New(rawURL string, sink engine.Sink) *Client {
	return &Client{
		url:  NormalizeURL(rawURL),
		sink: sink,
		log: logger.Log.WithFields(logrus.Fields{
			"component": "spectator",
		}),
	}
}

// NormalizeURL достраивает адрес сервера до полного адреса сокета:
// "localhost:8080" -> "ws://localhost:8080/ws".
func NormalizeURL(rawURL string) string {
	u := rawURL
	switch {
	case strings.HasPrefix(u, "ws://"), strings.HasPrefix(u, "wss://"):
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	default:
		u = "ws://" + u
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(u, "wss://"), "ws://")
	if !strings.Contains(rest, "/") {
		u += "/ws"
	}
	return u
}

// Watch смотрит живую трансляцию до обрыва соединения или отмены
// контекста. Команд серверу не шлет: живой бой нельзя перематывать.
func (c *Client) Watch(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return c.stream(ctx, conn, false)
}

// WatchReplay запрашивает запись по имени (пустое - самая свежая) и
// ведет ею рендерер до итогового кадра.
func (c *Client) WatchReplay(ctx context.Context, battle string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	raw, err := json.Marshal(api.WatchPayload{Battle: battle})
	if err != nil {
		return fmt.Errorf("failed to marshal watch payload: %w", err)
	}
	if err := conn.WriteJSON(api.ClientCommand{Action: api.ActionWatch, Payload: raw}); err != nil {
		return fmt.Errorf("failed to send watch command: %w", err)
	}

	return c.stream(ctx, conn, true)
}

// ListBattles возвращает каталог записей сервера.
func (c *Client) ListBattles(ctx context.Context) ([]string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.WriteJSON(api.ClientCommand{Action: api.ActionList}); err != nil {
		return nil, fmt.Errorf("failed to send list command: %w", err)
	}

	stop := watchContext(ctx, conn)
	defer stop()

	for {
		var msg api.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("connection lost: %w", err)
		}

		switch msg.Type {
		case api.MsgList:
			var list api.ListPayload
			if err := json.Unmarshal(msg.Payload, &list); err != nil {
				return nil, fmt.Errorf("failed to decode battle list: %w", err)
			}
			return list.Battles, nil
		case api.MsgError:
			return nil, serverError(msg.Payload)
		default:
			// Кадры живой трансляции каталог не отменяют - пропускаем.
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	c.log.WithFields(logrus.Fields{"url": c.url}).Debug("Connected")
	return conn, nil
}

// watchContext закрывает соединение при отмене контекста, чтобы
// разблокировать чтение. Возвращает функцию остановки наблюдателя.
func watchContext(ctx context.Context, conn *websocket.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// stream читает конверты и ведет ими Sink. При untilResult возвращается
// после итогового кадра, иначе - живет до обрыва или отмены.
func (c *Client) stream(ctx context.Context, conn *websocket.Conn, untilResult bool) error {
	stop := watchContext(ctx, conn)
	defer stop()

	for {
		var msg api.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		finished, err := c.handle(msg)
		if err != nil {
			return err
		}
		if finished && untilResult {
			return nil
		}
	}
}

// handle раскладывает конверт в DTO и зовет соответствующий метод
// Sink. true - пришел итог боя.
func (c *Client) handle(msg api.ServerMessage) (bool, error) {
	switch msg.Type {
	case api.MsgHeader:
		h := &api.BattleHeader{}
		if err := json.Unmarshal(msg.Payload, h); err != nil {
			return false, fmt.Errorf("failed to decode battle header: %w", err)
		}
		return false, c.sink.OnBattleStart(h)

	case api.MsgTurn:
		f := &api.TurnFrame{}
		if err := json.Unmarshal(msg.Payload, f); err != nil {
			return false, fmt.Errorf("failed to decode turn frame: %w", err)
		}
		return false, c.sink.OnTurn(f)

	case api.MsgResult:
		r := &api.BattleResult{}
		if err := json.Unmarshal(msg.Payload, r); err != nil {
			return false, fmt.Errorf("failed to decode battle result: %w", err)
		}
		return true, c.sink.OnBattleEnd(r)

	case api.MsgInfo:
		var info api.InfoPayload
		if err := json.Unmarshal(msg.Payload, &info); err == nil {
			c.log.WithFields(logrus.Fields{"server": info.Text}).Debug("Server info")
		}
		return false, nil

	case api.MsgError:
		return false, serverError(msg.Payload)

	default:
		c.log.WithFields(logrus.Fields{"type": msg.Type}).Warn("Unknown message type")
		return false, nil
	}
}

func serverError(payload json.RawMessage) error {
	var e api.ErrorPayload
	if err := json.Unmarshal(payload, &e); err != nil {
		return fmt.Errorf("server error")
	}
	return fmt.Errorf("server error: %s", e.Text)
}
