package server

import (
	"encoding/json"
	"fmt"

	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

// TypedHandlerFunc - это "чистый" хендлер, который работает с готовой структурой T
type TypedHandlerFunc[T any] func(c *Client, payload T) error

// EmptyHandlerFunc - хендлер, которому НЕ нужны данные (PAUSE, RESUME, LIST)
type EmptyHandlerFunc func(c *Client) error

// HandlerFunc - это контракт для любой команды зрителя.
type HandlerFunc func(c *Client, raw json.RawMessage) error

// WithPayload берет "чистый" хендлер и превращает его в стандартный HandlerFunc.
// Она берет на себя Unmarshal и Validate.
func WithPayload[T any](handler TypedHandlerFunc[T]) HandlerFunc {
	return func(c *Client, raw json.RawMessage) error {
		var payload T

		// 1. Распаковка JSON. Пустой Payload допустим и означает
		// значения по умолчанию.
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("invalid payload format: %w", err)
			}
		}

		// 2. Автоматическая валидация
		// Проверяем, реализует ли структура T интерфейс Validator
		if v, ok := any(payload).(api.Validator); ok {
			if err := v.Validate(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
		}

		// 3. Вызов чистой логики
		return handler(c, payload)
	}
}

// WithEmptyPayload - обертка для команд без данных
func WithEmptyPayload(handler EmptyHandlerFunc) HandlerFunc {
	return func(c *Client, _ json.RawMessage) error {
		// Входящий JSON игнорируется, он логике не нужен.
		return handler(c)
	}
}
