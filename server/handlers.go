// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/streamcast/control"
	"github.com/onnwee/streamcast/credentials"
	"github.com/onnwee/streamcast/dispatch"
	"github.com/onnwee/streamcast/scenes"
)

// Bridge is the part of the dispatcher the HTTP API reads.
// *dispatch.Dispatcher implements it.
type Bridge interface {
	Autocomplete(ctx context.Context, partial string) []string
	RefreshScenes(ctx context.Context) []string
	Moderators() []credentials.Moderator
}

// AuditReader lists recent audit entries. *db.AuditLog implements it.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]dispatch.AuditEntry, error)
}

// Options holds the dependencies of the HTTP API. Audit and DB are optional.
type Options struct {
	Bridge   Bridge
	Control  control.Client
	Scenes   *scenes.Cache
	Platform string
	// HasToken reports whether a bot token is stored.
	HasToken bool
	Audit    AuditReader
	DB       *sql.DB
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	opts Options
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(opts Options) *Handlers {
	return &Handlers{opts: opts}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json response", slog.Any("err", err), slog.String("component", "http"))
	}
}

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// formatID renders platform ids as strings; JSON numbers lose precision past 2^53.
func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
