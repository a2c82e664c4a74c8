package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/gpiogw/internal/action"
)

const (
	maxActionBody       = 1 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// handlePing handles GET /gpio/ping (no auth).
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ping"))
}

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:     s.queue.QueueDepth(),
		ActiveTasks:    s.queue.ActiveTasks(),
		HandlersLoaded: len(s.registry.Handlers()),
	})
}

// handlePostActions handles POST /gpio/action.
// Only enabled entries are enqueued; each carries the caller's address as origin.
func (s *Server) handlePostActions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxActionBody)

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	actions, err := action.ParseList(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(actions) == 0 {
		s.writeError(w, http.StatusBadRequest, "no actions supplied")
		return
	}

	origin := clientHost(r)
	resp := ActionResponse{Queued: []QueuedAction{}}
	enabled := 0
	for i, a := range actions {
		if !a.Enabled {
			continue
		}
		enabled++

		item := action.NewQueueItem(a, origin)
		if err := s.queue.Enqueue(item); err != nil {
			s.logger.Error("failed to enqueue action",
				"index", i,
				"kind", a.Kind,
				"config", a.ConfigName,
				"origin", origin,
				"error", err,
			)
			resp.Rejected = append(resp.Rejected, RejectedAction{
				Index:  i,
				Kind:   a.Kind,
				Config: a.ConfigName,
				Error:  err.Error(),
			})
			continue
		}
		resp.Queued = append(resp.Queued, QueuedAction{
			ID:     item.ID,
			Kind:   a.Kind,
			Config: a.ConfigName,
			TaskID: a.TaskID,
		})
	}

	switch {
	case enabled == 0:
		s.writeError(w, http.StatusBadRequest, "no enabled actions supplied")
	case len(resp.Queued) == 0:
		respondJSON(w, http.StatusBadRequest, resp)
	default:
		respondJSON(w, http.StatusAccepted, resp)
	}
}

// handleListTasks handles GET /gpio/task.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, TaskListResponse{Tasks: s.queue.Tasks()})
}

// handleGetTask handles GET /gpio/task/{id}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, ok := s.queue.GetTask(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// handleCancelTask handles DELETE /gpio/task/{id}. The task may still be
// running when the response is written.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.queue.CancelTask(id) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	respondJSON(w, http.StatusAccepted, CancelResponse{ID: id, Status: "cancel_requested"})
}

// handleListPlugins handles GET /gpio/plugins.
func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.Handlers()
	resp := PluginListResponse{Plugins: make([]PluginSummary, 0, len(entries))}
	for _, e := range entries {
		resp.Plugins = append(resp.Plugins, PluginSummary{
			Implementation: e.Implementation,
			Description:    e.Description,
			Kinds:          e.Kinds,
			State:          e.Handler.CurrentState(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleListConfigs handles GET /gpio/config.
func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	names := s.configs.Names()
	resp := ConfigListResponse{Configs: make([]ConfigSummary, 0, len(names))}
	for _, name := range names {
		digest, _ := s.configs.Digest(name)
		resp.Configs = append(resp.Configs, ConfigSummary{Name: name, Digest: digest})
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleHistory handles GET /gpio/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "action history disabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read action history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read action history")
		return
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

// handleOpenAPI handles GET /openapi.json (no auth).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.registry.Kinds()))
}

// clientHost strips the port from the request's remote address. RealIP
// middleware has already applied X-Forwarded-For / X-Real-IP.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
