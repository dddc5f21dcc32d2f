package handler

import (
	"encoding/json"
	"net/http"
)

// writeJSON marshals v and writes it with the given status. Encoding errors
// at this point cannot be reported to the client anymore.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
