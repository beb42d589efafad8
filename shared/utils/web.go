package utils

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/staffhub/staffhub/shared/errors"
	"github.com/staffhub/staffhub/shared/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// WriteErrorAndStatusCode maps err to its HTTP status. Errors without a
// status are internal and their text is not exposed.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	status := errors.StatusCode(err)
	if status == http.StatusInternalServerError {
		logger.Log.Error("internal error", "component", "http", "error", err)
		http.Error(w, "Internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Error("failed to encode response", "component", "http", "error", err)
	}
}

func DecodeValidate(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		logger.Log.Debug("invalid request body", "component", "http", "error", err)
		return errors.ParseError("Body is invalid json")
	}
	if err := validate.Struct(body); err != nil {
		logger.Log.Debug("request validation failed", "component", "http", "error", err)
		return errors.ParseError("Required fields missing or invalid")
	}
	return nil
}
