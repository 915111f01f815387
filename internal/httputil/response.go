// Package httputil holds the JSON response helpers shared by the router and
// the middleware chain.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	svcerrors "github.com/R3E-Network/microblog/internal/errors"
)

// ErrorBody is the envelope returned for every failed request.
type ErrorBody struct {
	Result       bool   `json:"result"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

// WriteJSON encodes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteResult writes {"result": true} merged with fields.
func WriteResult(w http.ResponseWriter, status int, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["result"] = true
	WriteJSON(w, status, body)
}

// WriteError reports err in the error envelope. Errors that are not service
// errors become a generic 500 so internal details never reach clients.
func WriteError(w http.ResponseWriter, err error) {
	se := svcerrors.GetServiceError(err)
	if se == nil {
		se = svcerrors.Internal("Internal server error", err)
	}
	WriteJSON(w, se.HTTPStatus, ErrorBody{
		Result:       false,
		ErrorType:    string(se.Code),
		ErrorMessage: se.Message,
	})
}

// DecodeJSON decodes a single JSON document from body. Unknown fields are
// ignored.
func DecodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(dst)
}
