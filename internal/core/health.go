package core

import "net/http"

// HandleHealth is the liveness endpoint. It returns 200 with
// {"status":"healthy"} unconditionally: no auth, no side effects, no
// dependency checks. The upstream accounts are authoritative and
// re-queryable, so a degraded poller never makes the process unhealthy.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, StatusResponse{Status: "healthy"})
}
