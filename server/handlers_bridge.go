package server

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/streamcast/scenes"
	"github.com/onnwee/streamcast/telemetry"
)

type statusResponse struct {
	Platform     string `json:"platform"`
	Moderators   int    `json:"moderators"`
	ScenesCached int    `json:"scenes_cached"`
	ScenesLoaded bool   `json:"scenes_loaded"`
	AuditEnabled bool   `json:"audit_enabled"`
}

// HandleStatus reports bridge state without touching OBS.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Platform:     h.opts.Platform,
		AuditEnabled: h.opts.Audit != nil,
	}
	if h.opts.Bridge != nil {
		resp.Moderators = len(h.opts.Bridge.Moderators())
	}
	if h.opts.Scenes != nil {
		resp.ScenesCached = len(h.opts.Scenes.Names())
		resp.ScenesLoaded = h.opts.Scenes.Populated()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleScenes is autocomplete over HTTP: GET /scenes?q=partial returns at
// most 25 matching scene names.
func (h *Handlers) HandleScenes(w http.ResponseWriter, r *http.Request) {
	names := h.opts.Bridge.Autocomplete(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{"scenes": names, "limit": scenes.DefaultLimit})
}

// HandleAdminModerators lists the roster.
func (h *Handlers) HandleAdminModerators(w http.ResponseWriter, r *http.Request) {
	type moderator struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	mods := h.opts.Bridge.Moderators()
	out := make([]moderator, 0, len(mods))
	for _, m := range mods {
		out = append(out, moderator{ID: formatID(m.ID), Name: m.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"moderators": out})
}

// HandleAdminSceneRefresh forces a scene list refresh regardless of cache state.
func (h *Handlers) HandleAdminSceneRefresh(w http.ResponseWriter, r *http.Request) {
	names := h.opts.Bridge.RefreshScenes(r.Context())
	telemetry.LoggerWithCorr(r.Context()).Info("scene list refreshed via admin api", slog.Int("scenes", len(names)), slog.String("component", "http"))
	writeJSON(w, http.StatusOK, map[string]any{"scenes": names})
}

// HandleAdminAudit returns recent audit entries (?limit=, default 50, max 500).
func (h *Handlers) HandleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if h.opts.Audit == nil {
		http.Error(w, "audit log disabled (DB_DSN not set)", http.StatusNotFound)
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	entries, err := h.opts.Audit.Recent(r.Context(), limit)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("audit query failed", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}
	type entry struct {
		CorrelationID string `json:"correlation_id"`
		Platform      string `json:"platform"`
		Command       string `json:"command"`
		CallerID      string `json:"caller_id"`
		Outcome       string `json:"outcome"`
		Detail        string `json:"detail"`
		CreatedAt     string `json:"created_at"`
	}
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, entry{
			CorrelationID: e.CorrelationID,
			Platform:      e.Platform,
			Command:       e.Command,
			CallerID:      formatID(e.CallerID),
			Outcome:       e.Outcome,
			Detail:        e.Detail,
			CreatedAt:     e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
