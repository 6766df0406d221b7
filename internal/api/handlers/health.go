package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// Health returns a minimal liveness check endpoint.
func Health(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(logger, w, r, http.MethodGet) {
			return
		}
		writeJSON(logger, w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
