package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/service/blob"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"github.com/secmon-lab/compliflow/pkg/utils/errutil"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"github.com/secmon-lab/compliflow/pkg/utils/safe"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusOf maps a failure kind to an HTTP status
func statusOf(kind string) int {
	switch kind {
	case "InvalidInput", "InvalidWorkflowDefinition", "IllegalTransition", "NoActiveWorkflow",
		"CannotDeleteDefaultWorkflow", "DuplicateEmail", "DuplicateOrganizationName":
		return http.StatusBadRequest
	case "InvalidCredentials":
		return http.StatusUnauthorized
	case "RoleNotAuthorized", "PermissionDenied":
		return http.StatusForbidden
	case "NotFound":
		return http.StatusNotFound
	case "ConcurrentModification":
		return http.StatusConflict
	case "PayloadTooLarge":
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, goerr.Wrap(err, "failed to marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

// writeError renders err as the JSON error envelope. Internal failures are reported
// and their message is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := usecase.Kind(err)
	var maxBytes *http.MaxBytesError
	if errors.Is(err, blob.ErrTooLarge) || errors.As(err, &maxBytes) {
		kind = "PayloadTooLarge"
	}

	status := statusOf(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		errutil.Handle(r.Context(), err, "request failed")
		msg = "internal server error"
	} else {
		logging.From(r.Context()).Info("request rejected", "kind", kind, "error", err.Error())
	}

	writeErrorBody(w, r, status, kind, msg)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, kind, msg string) {
	data, _ := json.Marshal(errorResponse{Success: false, Kind: kind, Message: msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, DefaultMaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return goerr.Wrap(err, "request body too large")
		}
		return goerr.Wrap(usecase.ErrInvalidInput, "malformed JSON body", goerr.V("reason", err.Error()))
	}
	return nil
}

// queryInt parses an optional positive integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, goerr.Wrap(usecase.ErrInvalidInput, "invalid integer query parameter",
			goerr.V(usecase.FieldKey, name), goerr.V("value", raw))
	}
	return n, nil
}
