package handler

import (
	"net/http"
	"time"

	"inkwell/internal/httputil"
)

// HealthCheck reports liveness.
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
