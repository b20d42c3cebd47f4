package httputil

import (
	"encoding/json"
	"net/http"
)

// ParseJSONOrError decodes the request body into dst. On malformed input
// it writes a 400 and returns false; callers just return.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
