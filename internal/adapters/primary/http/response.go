package http

import (
	"encoding/json"
	"net/http"
)

const contentTypeJSON = "application/json"

// ListResponse wraps a list of items (non-paginated)
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// WriteJSON writes v as the JSON body of a response with the given status.
// Encode errors are dropped because the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteRevalidated writes a 200 response that clients may cache but must
// revalidate through If-None-Match before reuse.
func WriteRevalidated(w http.ResponseWriter, v any) {
	w.Header().Set("Cache-Control", "no-cache")
	WriteJSON(w, http.StatusOK, v)
}

// newList wraps data in a ListResponse. A nil slice is sent as [].
func newList[T any](data []T) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Data: data, Count: len(data)}
}
