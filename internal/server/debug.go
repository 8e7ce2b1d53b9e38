package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
)

// DebugHandler предоставляет доступ к внутреннему состоянию сервера
type DebugHandler struct {
	srv *Server
}

func NewDebugHandler(s *Server) *DebugHandler {
	return &DebugHandler{srv: s}
}

// RegisterRoutes регистрирует debug-эндпоинты
func (h *DebugHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/battles", h.handleListBattles)
	mux.HandleFunc("/debug/hub", h.handleHubState)
}

// /debug/battles - каталог записей с размерами файлов
func (h *DebugHandler) handleListBattles(w http.ResponseWriter, r *http.Request) {
	type BattleSummary struct {
		Name  string `json:"name"`
		Bytes int64  `json:"bytes"`
	}

	if h.srv.store == nil {
		writeJSON(w, nil)
		return
	}

	names, err := h.srv.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summary := make([]BattleSummary, 0, len(names))
	for _, name := range names {
		entry := BattleSummary{Name: name}
		if info, err := os.Stat(filepath.Join(h.srv.store.Dir, name)); err == nil {
			entry.Bytes = info.Size()
		}
		summary = append(summary, entry)
	}

	writeJSON(w, summary)
}

// /debug/hub - состояние живой трансляции
func (h *DebugHandler) handleHubState(w http.ResponseWriter, r *http.Request) {
	type HubState struct {
		Live        bool `json:"live"`
		Subscribers int  `json:"subscribers"`
	}

	state := HubState{}
	if h.srv.hub != nil {
		state.Live = true
		state.Subscribers = h.srv.hub.SubscriberCount()
	}
	writeJSON(w, state)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	w.Header().Set("Content-Type", "application/json")

	// Пустой каталог - это [], а не null.
	if data == nil {
		w.Write([]byte("[]"))
		return
	}

	json.NewEncoder(w).Encode(data)
}
