// Пакет server транслирует бои зрителям по WebSocket: живой бой через
// хаб, записи - через протокол воспроизведения (WATCH, PAUSE, RESUME,
// STEP, SEEK, LIST).
package server

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mikkokallio/goblin-tactics/internal/config"
	"github.com/mikkokallio/goblin-tactics/internal/network"
	"github.com/mikkokallio/goblin-tactics/internal/storage"
	"github.com/mikkokallio/goblin-tactics/internal/version"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

type Server struct {
	addr      string
	turnDelay time.Duration

	// hub - живая трансляция. Может быть nil: сервер, играющий только
	// записи, подписывает зрителей лишь по команде WATCH.
	hub   *network.Broadcaster
	store *storage.Store

	// defaultBattle - запись, которую получает WATCH без имени.
	// Пустая строка означает самую свежую в каталоге.
	defaultBattle string

	handlers map[string]HandlerFunc

	log *logrus.Entry
}

func New(cfg config.ServerSettings, hub *network.Broadcaster, store *storage.Store) *Server {
	s := &Server{
		addr:      cfg.Addr,
		turnDelay: cfg.TurnDelay,
		hub:       hub,
		store:     store,
		log: logger.Log.WithFields(logrus.Fields{
			"component": "server",
		}),
	}

	// Регистрируем команды протокола воспроизведения.
	s.handlers = map[string]HandlerFunc{
		api.ActionWatch:  WithPayload(handleWatch),
		api.ActionPause:  WithEmptyPayload(handlePause),
		api.ActionResume: WithEmptyPayload(handleResume),
		api.ActionStep:   WithPayload(handleStep),
		api.ActionSeek:   WithPayload(handleSeek),
		api.ActionList:   WithEmptyPayload(handleList),
	}
	return s
}

// SetDefaultBattle назначает запись для WATCH без имени.
func (s *Server) SetDefaultBattle(name string) { s.defaultBattle = name }

// Handler собирает маршруты сервера. Отдельно от Run, чтобы тесты
// могли поднимать сервер через httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", enableCORS(s.handleWS))
	mux.HandleFunc("/health", enableCORS(s.handleHealth))
	mux.HandleFunc("/version", enableCORS(s.handleVersion))

	// Debug-маршруты: состояние каталога записей и хаба.
	debugHandler := NewDebugHandler(s)
	debugHandler.RegisterRoutes(mux)

	// Профилирование. DefaultServeMux не используем: сервер должен
	// подниматься в нескольких экземплярах.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	s.log.WithFields(logrus.Fields{
		"addr":    s.addr,
		"version": version.String(),
	}).Info("Spectator server running")
	return http.ListenAndServe(s.addr, s.Handler())
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Разрешаем запросы с фронтенда
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		next(w, r)
	}
}

// handleWS обрабатывает подключение по WebSocket
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("Upgrade error")
		return
	}

	client := newClient(s, conn)

	// Живая трансляция подключается сразу: зритель видит бой с первого
	// кадра после коннекта, WATCH переключит его на запись.
	if s.hub != nil {
		id, updates := s.hub.Register()
		client.hubID = id
		go client.forward(updates)
	}

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version.Info())
}
