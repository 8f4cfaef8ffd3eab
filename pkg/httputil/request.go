package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ParseJSONOrError decodes the request body into dst. On failure it writes a
// 400 response and returns false; callers just return.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// ParseQueryInt parses an integer query parameter with a default
func ParseQueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// ParseQueryBool parses a boolean query parameter with a default
func ParseQueryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
