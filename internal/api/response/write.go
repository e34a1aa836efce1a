package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as the response body. A nil data is written as null so
// clients can tell an empty slot from a failed request.
func JSON(w http.ResponseWriter, status int, data any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
