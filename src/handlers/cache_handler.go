package handlers

import (
	"log/slog"
	"net/http"

	"finpilot-server/src/cache"
	"finpilot-server/src/middleware"
	"finpilot-server/src/realtime"

	"github.com/go-chi/chi/v5"
)

// GetInvalidationKeys exposes the invalidation map so clients can apply
// the same invalidations locally. Unknown tags yield an empty list.
func GetInvalidationKeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := cache.MutationTag(chi.URLParam(r, "tag"))
		writeJSON(w, http.StatusOK, map[string]any{"tag": tag, "keys": cache.InvalidationKeys(tag)})
	}
}

func ClearCache(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partition := chi.URLParam(r, "partition")
		dropped := env.Cache.Clear(partition)
		slog.Info("Cleared cache partition", "partition", partition, "keys", dropped, "by", middleware.UserID(r.Context()))
		writeJSON(w, http.StatusOK, map[string]any{"partition": partition, "cleared": dropped})
	}
}

// Realtime subscribes the caller to their invalidation stream.
func Realtime(hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, middleware.UserID(r.Context()).String())
	}
}
