package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

const (
	jsonContentType = "application/json; charset=utf-8"
	textContentType = "text/plain; charset=utf-8"
)

// WriteJSON encodes obj and writes it with the given status code. Encoding
// failures degrade to an empty object rather than a half-written body.
func WriteJSON(w http.ResponseWriter, code int, obj interface{}) {
	body, err := json.Marshal(obj)
	if err != nil {
		body = []byte("{}")
	}

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(code)
	w.Write(body)
}

// WriteText writes a plain text response with the given status code
func WriteText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", textContentType)
	w.WriteHeader(code)
	io.WriteString(w, body)
}
