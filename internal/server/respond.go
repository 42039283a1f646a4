package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as the {success:false,message} envelope. Internal failures
// are logged with their cause and reported with their public message only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	log := common.LoggerFromContext(r.Context(), nil)
	if code >= http.StatusInternalServerError {
		log.Error("http.error", "path", r.URL.Path, "status", code, "error", err)
	} else {
		log.Warn("http.error", "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, errorResponse{Success: false, Message: common.Message(err), Code: common.ErrorCode(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.InvalidInput("request body too large")
		}
		return common.InvalidInput("request body must be a JSON object")
	}
	return nil
}
