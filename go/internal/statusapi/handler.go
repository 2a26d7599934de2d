// Package statusapi serves a read-only JSON view of the client state for
// external renderers.
package statusapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/mcdev12/tablesync/go/internal/realtime/notice"
	"github.com/mcdev12/tablesync/go/internal/realtime/session"
	"github.com/mcdev12/tablesync/go/internal/tableclient"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	Connected          bool                `json:"connected"`
	Reconnecting       bool                `json:"reconnecting"`
	Profile            models.Profile      `json:"profile"`
	Session            session.Placement   `json:"session"`
	ActiveTableID      string              `json:"active_table_id,omitempty"`
	SpectatingActive   bool                `json:"spectating_active"`
	Table              *models.Table       `json:"table,omitempty"`
	GameState          *models.GameState   `json:"game_state,omitempty"`
	SecondsRemaining   int                 `json:"seconds_remaining"`
	MyAvailableActions []models.TurnAction `json:"my_available_actions"`
	Notice             *notice.Notice      `json:"notice,omitempty"`
}

// TablesResponse is the body of GET /api/tables.
type TablesResponse struct {
	Tables      []models.Table `json:"tables"`
	OnlineUsers int            `json:"online_users"`
}

// TableResponse is the body of GET /api/tables/{id}.
type TableResponse struct {
	Table     models.Table         `json:"table"`
	GameState *models.GameState    `json:"game_state,omitempty"`
	Chat      []models.ChatMessage `json:"chat"`
	Reactions []models.Reaction    `json:"reactions"`
	Muted     []string             `json:"muted"`
	Banned    []string             `json:"banned"`
}

// Handler serves the status routes.
type Handler struct {
	svc    *tableclient.Service
	health *HealthChecker
}

// NewHandler creates a handler reading from svc. relay may be nil.
func NewHandler(svc *tableclient.Service, relay RelayStatus) *Handler {
	return &Handler{svc: svc, health: NewHealthChecker(svc, relay)}
}

// RegisterRoutes registers the status routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Method(http.MethodGet, "/health/details", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.HandleGetState)
		r.Get("/tables", h.HandleGetTables)
		r.Get("/tables/{id}", h.HandleGetTable)
	})
}

// Routes returns every route wrapped with CORS.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	r.Use(c.Handler)

	h.RegisterRoutes(r)
	return r
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

// HandleGetState handles GET /api/state
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Store()
	me := h.svc.Me()

	resp := StateResponse{
		Connected:          h.svc.Connection().Connected(),
		Reconnecting:       h.svc.Connection().Reconnecting(),
		Profile:            h.svc.Profile(),
		Session:            h.svc.Session().Placement(),
		ActiveTableID:      h.svc.Session().ActiveTableID(),
		SpectatingActive:   st.IsSpectatingActive(),
		SecondsRemaining:   h.svc.TurnClock().Remaining(),
		MyAvailableActions: st.MyAvailableActions(me),
	}
	if resp.MyAvailableActions == nil {
		resp.MyAvailableActions = []models.TurnAction{}
	}
	if t, ok := st.ActiveTable(); ok {
		resp.Table = &t
	}
	if g, ok := st.ActiveGameState(); ok {
		resp.GameState = &g
	}
	if n, ok := h.svc.Notices().Last(); ok {
		resp.Notice = &n
	}
	writeJSON(w, resp)
}

// HandleGetTables handles GET /api/tables
func (h *Handler) HandleGetTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, TablesResponse{
		Tables:      h.svc.Store().Tables(),
		OnlineUsers: h.svc.Store().OnlineUsers(),
	})
}

// HandleGetTable handles GET /api/tables/{id}. An optional since query
// parameter (RFC 3339) limits chat and reactions to newer entries.
func (h *Handler) HandleGetTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Table ID is required", http.StatusBadRequest)
		return
	}
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "Invalid since parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	t, ok := h.svc.Store().Table(id)
	if !ok {
		http.Error(w, "Table not found", http.StatusNotFound)
		return
	}

	caches := h.svc.Caches()
	resp := TableResponse{
		Table:  t,
		Muted:  []string{},
		Banned: []string{},
	}
	if since.IsZero() {
		resp.Chat = caches.Chat.Entries(id)
		resp.Reactions = caches.Reactions.Entries(id)
	} else {
		resp.Chat = caches.Chat.Since(id, since)
		resp.Reactions = caches.Reactions.Since(id, since)
	}
	if g, ok := h.svc.Store().GameState(id); ok {
		resp.GameState = &g
	}
	if mod, ok := caches.Moderation.Get(id); ok {
		now := h.svc.Clock().Now()
		for userID := range mod.MutedUntil {
			if mod.IsMuted(userID, now) {
				resp.Muted = append(resp.Muted, userID)
			}
		}
		for userID := range mod.BannedUsers {
			resp.Banned = append(resp.Banned, userID)
		}
		slices.Sort(resp.Muted)
		slices.Sort(resp.Banned)
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode status response")
	}
}
