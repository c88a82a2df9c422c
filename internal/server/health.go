package server

import "net/http"

// HealthHandler reports listener liveness. It is mounted outside the
// gateway's route namespace so it can never shadow an API route.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
