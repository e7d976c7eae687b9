// Package handlers implements the manager's HTTP surface, spec.md §6's
// endpoint table, grounded on the teacher's internal/handlers response
// helpers (WriteJSON/RequireMethod) with the error envelope spec.md §7
// mandates in place of the teacher's {"status":"error",...} wrapper.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// RequireMethod validates that r uses method, writing 405 otherwise.
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// WriteJSON writes data as statusCode with a JSON content type.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes spec.md §7's exact error envelope: {"error": "<message>"}.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, map[string]string{"error": message})
}

// queryInt reads name from r's query string, returning def if absent or
// unparseable.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

// pathSuffix returns the remainder of path after prefix, or "" if path does
// not start with prefix. Grounded on the teacher's handleJobRoutes
// pathSuffix slicing in internal/server/routes.go.
func pathSuffix(path, prefix string) string {
	if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
		return ""
	}
	return path[len(prefix):]
}
